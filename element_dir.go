package classscan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/meigma/classscan/internal/pathutil"
)

// dirElement scans a directory classpath entry. The directory handle is
// held open for the element's lifetime so resource opens stay rooted under
// the canonical path.
type dirElement struct {
	baseElement
	root *os.Root
}

func (e *dirElement) scanPaths(ctx context.Context) error {
	e.state = stateDiscovering

	root, err := os.OpenRoot(e.entry.CanonicalPath)
	if err != nil {
		e.markSkipped(fmt.Errorf("open directory: %w", err))
		return nil
	}
	e.root = root

	if !e.scanFiles {
		e.finishScan()
		return nil
	}

	e.modTimes = make(map[string]time.Time)
	walkErr := fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && e.underNestedRoot(pathutil.DirPrefix(path)) {
				return fs.SkipDir
			}
			return nil
		}
		if !e.accept(path) {
			return nil
		}
		e.addMatch(&dirResource{root: root, rel: path})
		if info, ierr := d.Info(); ierr == nil {
			e.modTimes[path] = info.ModTime()
		}
		return nil
	})
	if walkErr != nil {
		if ctx.Err() != nil {
			return walkErr
		}
		e.markSkipped(fmt.Errorf("walk directory: %w", walkErr))
		return nil
	}

	e.finishScan()
	e.log().Debug("scanned directory classpath entry",
		"element", e.entry.ResolvedPath,
		"files", len(e.fileMatches),
		"classfiles", len(e.classfileMatches))
	return nil
}

func (e *dirElement) Close() error {
	return e.closeWith(func() error {
		if e.root == nil {
			return nil
		}
		err := e.root.Close()
		e.root = nil
		return err
	})
}
