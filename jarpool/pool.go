// Package jarpool provides a reference-counted cache of open archive
// handles, shared across classpath elements that reference the same
// physical archive (e.g. a package-root sub-path and the archive root).
package jarpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxOpen is the default cap on concurrently open archives.
const DefaultMaxOpen = 64

// Pool caches open zip handles keyed by canonical archive path.
//
// Acquire and Release are safe for concurrent use. The underlying handle
// is closed only when the last reference is released, and the number of
// distinct archives held open at once is bounded by a semaphore.
type Pool struct {
	mu      sync.Mutex
	sem     *semaphore.Weighted
	handles map[string]*handle
}

type handle struct {
	rc   *zip.ReadCloser
	refs int
}

// New creates a Pool that keeps at most maxOpen archives open at once.
// Values <= 0 use DefaultMaxOpen.
func New(maxOpen int64) *Pool {
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpen
	}
	return &Pool{
		sem:     semaphore.NewWeighted(maxOpen),
		handles: make(map[string]*handle),
	}
}

// Acquire returns a shared reader for the archive at path, incrementing
// its reference count. Every successful Acquire must be paired with
// exactly one Release for the same path.
//
// Opening a new archive blocks while the pool is at its open-handle cap;
// the context bounds that wait.
func (p *Pool) Acquire(ctx context.Context, path string) (*zip.Reader, error) {
	p.mu.Lock()
	if h, ok := p.handles[path]; ok {
		h.refs++
		p.mu.Unlock()
		return &h.rc.Reader, nil
	}
	p.mu.Unlock()

	// The semaphore is never awaited under the mutex: a blocked open must
	// not prevent other goroutines from releasing handles.
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	if h, ok := p.handles[path]; ok {
		// Lost the open race; keep the handle that won.
		h.refs++
		p.mu.Unlock()
		_ = rc.Close() //nolint:errcheck // duplicate handle, best-effort cleanup
		p.sem.Release(1)
		return &h.rc.Reader, nil
	}
	p.handles[path] = &handle{rc: rc, refs: 1}
	p.mu.Unlock()
	return &rc.Reader, nil
}

// Release decrements the reference count for the archive at path, closing
// the underlying handle when the count reaches zero.
func (p *Pool) Release(path string) error {
	p.mu.Lock()
	h, ok := p.handles[path]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("jarpool: release of unknown archive %s", path)
	}
	h.refs--
	if h.refs > 0 {
		p.mu.Unlock()
		return nil
	}
	delete(p.handles, path)
	p.mu.Unlock()

	err := h.rc.Close()
	p.sem.Release(1)
	return err
}

// OpenCount returns the number of distinct archives currently held open.
func (p *Pool) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}
