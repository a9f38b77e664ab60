package classscan

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// Resource is one discovered file within a classpath element.
//
// Path is classpath-root-relative and forward-slash separated. Open returns
// a fresh byte stream over the resource; the caller must close it exactly
// once per open. Open is only valid while the owning element is open.
type Resource interface {
	Path() string
	Open() (io.ReadCloser, error)
}

type dirResource struct {
	root *os.Root
	rel  string
}

func (r *dirResource) Path() string { return r.rel }

func (r *dirResource) Open() (io.ReadCloser, error) {
	return r.root.Open(filepath.FromSlash(r.rel))
}

type zipResource struct {
	file *zip.File
	rel  string
}

func (r *zipResource) Path() string { return r.rel }

func (r *zipResource) Open() (io.ReadCloser, error) {
	return r.file.Open()
}

type moduleResource struct {
	reader ModuleReader
	rel    string
}

func (r *moduleResource) Path() string { return r.rel }

func (r *moduleResource) Open() (io.ReadCloser, error) {
	return r.reader.Open(r.rel)
}
