package classscan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/classscan/internal/pathutil"
	"github.com/meigma/classscan/jarpool"
)

// Result is the outcome of a scan: the ordered elements with their
// post-mask match lists, the record sink, the classpath fingerprint, and
// the aggregated recoverable diagnostics. A scan with some unreadable
// elements or resources completes with a partial, self-consistent result;
// only a fatal parse error terminates the run.
type Result struct {
	// Elements holds one element per surviving classpath entry, in
	// declaration order. Skipped elements are included with empty match
	// lists. Elements are closed by the time Scan returns; match paths
	// remain readable but resources can no longer be opened.
	Elements []Element

	// Sink is the record sink the parse phase wrote to.
	Sink RecordSink

	// SkipErrors aggregates the causes of skipped elements, or nil.
	SkipErrors error

	// ResourceErrors aggregates recoverable per-resource parse failures, or nil.
	ResourceErrors error

	// Fingerprint digests the discovered classpath for external change
	// detection.
	Fingerprint digest.Digest
}

// Records returns the parsed records when the default sink was used, in
// unspecified order. Returns nil for custom sinks.
func (r *Result) Records() []*ClassRecord {
	if sink, ok := r.Sink.(*MapSink); ok {
		return sink.Records()
	}
	return nil
}

// ChildEntries returns every classpath entry discovered via element linkage
// metadata (archive manifest Class-Path references), in element order.
// Callers use these to extend the classpath; they are not scanned here.
func (r *Result) ChildEntries() []ResolvedEntry {
	var children []ResolvedEntry
	for _, elt := range r.Elements {
		children = append(children, elt.ChildEntries()...)
	}
	return children
}

// Scan indexes the classpath entries in declaration order and dispatches
// every surviving classfile match to parser. A nil parser skips the parse
// phase (discovery and masking still run).
//
// Cancellation is cooperative: the context is polled at the start of every
// unit of work and within traversals; once signaled, workers stop promptly
// and Scan returns the context error. Every constructed element is closed
// exactly once before Scan returns, on all paths.
func Scan(ctx context.Context, entries []ResolvedEntry, parser Parser, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	pool := cfg.pool
	if pool == nil {
		pool = jarpool.New(cfg.maxOpenArchives)
	}

	elements := make([]Element, 0, len(entries))
	for _, entry := range entries {
		if elt := newElement(entry, cfg, pool); elt != nil {
			elements = append(elements, elt)
		}
	}
	defer func() {
		for _, elt := range elements {
			if err := elt.Close(); err != nil {
				cfg.log().Warn("closing classpath element",
					"element", elt.Entry().ResolvedPath, "error", err)
			}
		}
	}()

	markNestedRoots(elements)

	// Discovery phase: one element per unit of work, match lists are
	// independent memory regions so no locking is needed.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.workerCount(len(elements)))
	for _, elt := range elements {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			return elt.scanPaths(egCtx)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var skipErrs *multierror.Error
	for _, elt := range elements {
		if elt.Skipped() && elt.SkipCause() != nil {
			skipErrs = multierror.Append(skipErrs, fmt.Errorf("%w: %s: %v",
				ErrElementSkipped, elt.Entry().ResolvedPath, elt.SkipCause()))
		}
	}

	sink := cfg.sink
	if sink == nil {
		sink = NewMapSink()
	}

	var resourceErrs error
	if cfg.scanFiles {
		// Masking is a global barrier: it reasons about cross-element
		// ordering, so it runs single-threaded after discovery completes.
		maskAll(elements)

		if parser != nil {
			var err error
			resourceErrs, err = parsePhase(ctx, elements, parser, sink, cfg)
			if err != nil {
				return nil, err
			}
		}
	}

	return &Result{
		Elements:       elements,
		Sink:           sink,
		SkipErrors:     skipErrs.ErrorOrNil(),
		ResourceErrors: resourceErrs,
		Fingerprint:    fingerprintElements(elements),
	}, nil
}

// markNestedRoots records, on every element, the relative prefixes of
// other elements rooted inside it, so traversal stops at nested classpath
// roots instead of scanning that subtree twice. Directory elements nest by
// filesystem containment; archive elements nest when the same physical
// archive is also declared with a package root below this element's own.
func markNestedRoots(elements []Element) {
	for _, outer := range elements {
		ob := outer.base()
		switch ob.variant {
		case VariantDirectory:
			outerPrefix := ob.entry.CanonicalPath + string(filepath.Separator)
			for _, inner := range elements {
				ib := inner.base()
				if ib == ob || ib.entry.CanonicalPath == "" {
					continue
				}
				if !strings.HasPrefix(ib.entry.CanonicalPath, outerPrefix) {
					continue
				}
				rel := filepath.ToSlash(ib.entry.CanonicalPath[len(outerPrefix):])
				ob.nestedRootPrefixes = append(ob.nestedRootPrefixes, pathutil.DirPrefix(rel))
			}
		case VariantArchive:
			outerPrefix := pathutil.DirPrefix(pathutil.Normalize(ob.entry.PackageRoot))
			for _, inner := range elements {
				ib := inner.base()
				if ib == ob || ib.variant != VariantArchive ||
					ib.entry.CanonicalPath != ob.entry.CanonicalPath {
					continue
				}
				innerPrefix := pathutil.DirPrefix(pathutil.Normalize(ib.entry.PackageRoot))
				if innerPrefix == outerPrefix || !strings.HasPrefix(innerPrefix, outerPrefix) {
					continue
				}
				// Prefixes are matched against package-root-relative paths.
				ob.nestedRootPrefixes = append(ob.nestedRootPrefixes, innerPrefix[len(outerPrefix):])
			}
		}
	}
}
