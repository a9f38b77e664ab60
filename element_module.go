package classscan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meigma/classscan/internal/pathutil"
)

// moduleElement scans a module-backed classpath entry through its
// ModuleReader. The reader stays open for the element's lifetime so
// resource opens remain valid, and is closed on Close.
type moduleElement struct {
	baseElement
	reader ModuleReader
}

func (e *moduleElement) scanPaths(ctx context.Context) error {
	e.state = stateDiscovering

	ref := e.entry.Module
	if ref == nil || ref.Reader == nil {
		e.markSkipped(errors.New("module entry has no reader"))
		return nil
	}
	reader, err := ref.Reader()
	if err != nil {
		e.markSkipped(fmt.Errorf("open module reader: %w", err))
		return nil
	}
	e.reader = reader

	if !e.scanFiles {
		e.finishScan()
		return nil
	}

	names, err := reader.List()
	if err != nil {
		e.markSkipped(fmt.Errorf("list module resources: %w", err))
		return nil
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := pathutil.Normalize(name)
		if rel == "" || strings.HasSuffix(name, "/") {
			continue
		}
		if !e.accept(rel) {
			continue
		}
		e.addMatch(&moduleResource{reader: reader, rel: rel})
	}

	e.finishScan()
	e.log().Debug("scanned module classpath entry",
		"element", e.entry.ResolvedPath,
		"module", ref.Name,
		"files", len(e.fileMatches),
		"classfiles", len(e.classfileMatches))
	return nil
}

func (e *moduleElement) Close() error {
	return e.closeWith(func() error {
		if e.reader == nil {
			return nil
		}
		err := e.reader.Close()
		e.reader = nil
		return err
	})
}
