package jarpool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestAcquireRelease(t *testing.T) {
	path := writeZip(t, map[string]string{"com/example/Foo.class": "bytes"})
	p := New(0)

	r1, err := p.Acquire(context.Background(), path)
	require.NoError(t, err)
	r2, err := p.Acquire(context.Background(), path)
	require.NoError(t, err)

	// Both acquisitions share the same physical handle.
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, p.OpenCount())

	require.NoError(t, p.Release(path))
	assert.Equal(t, 1, p.OpenCount(), "handle stays open while referenced")

	require.NoError(t, p.Release(path))
	assert.Equal(t, 0, p.OpenCount())
}

func TestAcquireMissingArchive(t *testing.T) {
	p := New(0)
	_, err := p.Acquire(context.Background(), filepath.Join(t.TempDir(), "absent.jar"))
	assert.Error(t, err)
	assert.Equal(t, 0, p.OpenCount())
}

func TestReleaseUnknown(t *testing.T) {
	p := New(0)
	err := p.Release("/nowhere/unknown.jar")
	assert.ErrorContains(t, err, "unknown archive")
}

func TestConcurrentAcquire(t *testing.T) {
	path := writeZip(t, map[string]string{"a.class": "a"})
	p := New(4)

	const goroutines = 16
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := p.Acquire(context.Background(), path)
			assert.NoError(t, err)
			assert.NotNil(t, r)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.OpenCount())
	for range goroutines {
		require.NoError(t, p.Release(path))
	}
	assert.Equal(t, 0, p.OpenCount())
}

func TestCanceledAcquireAtCap(t *testing.T) {
	pathA := writeZip(t, map[string]string{"a.class": "a"})
	pathB := writeZip(t, map[string]string{"b.class": "b"})
	p := New(1)

	_, err := p.Acquire(context.Background(), pathA)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx, pathB)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, p.Release(pathA))
}
