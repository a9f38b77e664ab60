package classscan

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/classscan/internal/pathutil"
	"github.com/meigma/classscan/jarpool"
)

const manifestPath = "META-INF/MANIFEST.MF"

// zipElement scans an archive classpath entry through a pooled zip handle.
// The handle is shared with any other element backed by the same physical
// archive and released (refcount decrement) on close.
type zipElement struct {
	baseElement
	pool     *jarpool.Pool
	reader   *zip.Reader
	acquired bool
}

func (e *zipElement) scanPaths(ctx context.Context) error {
	e.state = stateDiscovering

	reader, err := e.pool.Acquire(ctx, e.entry.CanonicalPath)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		e.markSkipped(fmt.Errorf("open archive: %w", err))
		return nil
	}
	e.reader = reader
	e.acquired = true

	// Manifest Class-Path references extend the classpath externally, so
	// they are collected even when file scanning is disabled.
	e.readManifest()

	if !e.scanFiles {
		e.finishScan()
		return nil
	}

	rootPrefix := pathutil.DirPrefix(pathutil.Normalize(e.entry.PackageRoot))
	for _, f := range e.reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := pathutil.Normalize(f.Name)
		if name == "" || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if rootPrefix != "" {
			if !strings.HasPrefix(name, rootPrefix) {
				continue
			}
			name = name[len(rootPrefix):]
		}
		if !e.accept(name) {
			continue
		}
		e.addMatch(&zipResource{file: f, rel: name})
	}

	e.finishScan()
	e.log().Debug("scanned archive classpath entry",
		"element", e.entry.ResolvedPath,
		"files", len(e.fileMatches),
		"classfiles", len(e.classfileMatches))
	return nil
}

// readManifest surfaces the archive's manifest Class-Path attribute as
// child classpath entries, resolved against the archive's parent directory.
func (e *zipElement) readManifest() {
	var mf *zip.File
	for _, f := range e.reader.File {
		if pathutil.Normalize(f.Name) == manifestPath {
			mf = f
			break
		}
	}
	if mf == nil {
		return
	}
	rc, err := mf.Open()
	if err != nil {
		e.log().Debug("unreadable manifest", "element", e.entry.ResolvedPath, "error", err)
		return
	}
	defer rc.Close() //nolint:errcheck // read-only stream
	data, err := io.ReadAll(rc)
	if err != nil {
		e.log().Debug("unreadable manifest", "element", e.entry.ResolvedPath, "error", err)
		return
	}

	parent := filepath.Dir(e.entry.CanonicalPath)
	for _, ref := range manifestClassPath(data) {
		resolved := ref
		if !filepath.IsAbs(ref) {
			resolved = filepath.Join(parent, filepath.FromSlash(ref))
		}
		e.childEntries = append(e.childEntries, ResolvedEntry{
			ResolvedPath: resolved,
			Loaders:      e.entry.Loaders,
		})
		e.log().Debug("found Class-Path manifest entry",
			"element", e.entry.ResolvedPath, "child", resolved)
	}
}

// manifestClassPath extracts the space-separated Class-Path values from the
// main section of a JAR manifest. Manifest lines are wrapped at 72 bytes;
// a line starting with a single space continues the previous one.
func manifestClassPath(data []byte) []string {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var unwrapped []string
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			break // end of main section
		}
		if strings.HasPrefix(line, " ") && len(unwrapped) > 0 {
			unwrapped[len(unwrapped)-1] += line[1:]
			continue
		}
		unwrapped = append(unwrapped, line)
	}
	for _, line := range unwrapped {
		value, ok := strings.CutPrefix(line, "Class-Path:")
		if !ok {
			continue
		}
		return strings.Fields(value)
	}
	return nil
}

func (e *zipElement) Close() error {
	return e.closeWith(func() error {
		if !e.acquired {
			return nil
		}
		e.reader = nil
		return e.pool.Release(e.entry.CanonicalPath)
	})
}
