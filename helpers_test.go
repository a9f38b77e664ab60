package classscan

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/meigma/classscan/internal/pathutil"
)

// fakeResource tracks open/close counts for resource-lifecycle assertions.
// Counters are atomic so parallel dispatch tests stay race-free.
type fakeResource struct {
	rel      string
	content  []byte
	openErr  error
	closeErr error
	opens    atomic.Int32
	closes   atomic.Int32
}

func (r *fakeResource) Path() string { return r.rel }

func (r *fakeResource) Open() (io.ReadCloser, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.opens.Add(1)
	return &fakeStream{Reader: bytes.NewReader(r.content), res: r}, nil
}

func (r *fakeResource) openCount() int  { return int(r.opens.Load()) }
func (r *fakeResource) closeCount() int { return int(r.closes.Load()) }

type fakeStream struct {
	*bytes.Reader
	res *fakeResource
}

func (s *fakeStream) Close() error {
	s.res.closes.Add(1)
	return s.res.closeErr
}

// testElement builds a discovered directory element with fake matches,
// bypassing traversal, for mask and parse unit tests.
func testElement(path string, resources ...*fakeResource) *dirElement {
	e := &dirElement{baseElement: baseElement{
		entry:     ResolvedEntry{ResolvedPath: path, CanonicalPath: path},
		variant:   VariantDirectory,
		scanFiles: true,
		spec:      acceptAll{},
	}}
	for _, res := range resources {
		e.addMatch(res)
	}
	e.state = stateDiscovered
	return e
}

// stubParser adapts a function to the Parser interface.
type stubParser struct {
	fn func(elt Element, relPath string, r io.Reader, spec Spec) (*ClassRecord, error)
}

func (p *stubParser) Parse(elt Element, relPath string, r io.Reader, spec Spec) (*ClassRecord, error) {
	return p.fn(elt, relPath, r, spec)
}

// drainingParser reads the stream fully and records the class name.
func drainingParser() *stubParser {
	return &stubParser{fn: func(elt Element, relPath string, r io.Reader, _ Spec) (*ClassRecord, error) {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return nil, err
		}
		return &ClassRecord{
			Name:    pathutil.ClassName(relPath),
			Path:    relPath,
			Element: elt,
		}, nil
	}}
}

// writeTestZip creates an archive with the given entries in declaration
// order and returns its path.
func writeTestZip(t *testing.T, name string, entries [][2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, entry := range entries {
		w, err := zw.Create(entry[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(entry[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// writeTestTree creates files (with parent directories) under a new temp
// dir and returns its path. Keys are slash-relative paths.
func writeTestTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

// fakeModuleReader serves module resources from a map, preserving the
// declared name order, and records whether it was closed.
type fakeModuleReader struct {
	names   []string
	content map[string]string
	listErr error
	closed  int
}

func (m *fakeModuleReader) List() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.names, nil
}

func (m *fakeModuleReader) Open(name string) (io.ReadCloser, error) {
	content, ok := m.content[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader([]byte(content))), nil
}

func (m *fakeModuleReader) Close() error {
	m.closed++
	return nil
}
