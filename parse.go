package classscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// parseRange is one parse-phase unit of work: a half-open index range over
// one element's finalized classfile matches.
type parseRange struct {
	elt        Element
	start, end int
}

// partitionRanges splits every element's classfile matches into index
// ranges of at most chunk entries, balancing total classfile count across
// workers regardless of how classfiles are distributed over elements.
func partitionRanges(elements []Element, chunk int) []parseRange {
	var ranges []parseRange
	for _, elt := range elements {
		n := elt.base().NumClassfileMatches()
		for start := 0; start < n; start += chunk {
			end := min(start+chunk, n)
			ranges = append(ranges, parseRange{elt: elt, start: start, end: end})
		}
	}
	return ranges
}

// parsePhase dispatches all post-mask classfile matches to the external
// parser over a bounded worker pool. Recoverable per-resource failures are
// aggregated and returned as resourceErrs; any other parser failure cancels
// sibling ranges and is returned as err.
func parsePhase(ctx context.Context, elements []Element, parser Parser, sink RecordSink, cfg *config) (resourceErrs, err error) {
	total := 0
	for _, elt := range elements {
		total += elt.base().NumClassfileMatches()
	}
	if total == 0 {
		return nil, nil
	}

	workers := cfg.workerCount(total)
	chunk := total / (workers * 4)
	if chunk < 1 {
		chunk = 1
	}
	ranges := partitionRanges(elements, chunk)

	var mu sync.Mutex
	var recoverable *multierror.Error
	onRecoverable := func(ferr error) {
		mu.Lock()
		recoverable = multierror.Append(recoverable, ferr)
		mu.Unlock()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, r := range ranges {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			return parseClassfiles(egCtx, r.elt, r.start, r.end, parser, sink, onRecoverable, cfg.log())
		})
	}
	if err := eg.Wait(); err != nil {
		return recoverable.ErrorOrNil(), err
	}
	return recoverable.ErrorOrNil(), nil
}

// parseClassfiles processes one element's classfile matches in [start, end)
// in range order: open the resource, invoke the parser, push any record to
// the sink, and close the resource before moving to the next index.
//
// A failure to open or read one resource is recoverable: it is logged,
// reported, and the range continues. Any other parser failure is fatal for
// the whole dispatch call; the in-flight resource is still released before
// the failure is re-raised.
func parseClassfiles(ctx context.Context, elt Element, start, end int, parser Parser, sink RecordSink, onRecoverable func(error), logger *slog.Logger) error {
	b := elt.base()
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := b.classfileMatches[i]
		err := parseOne(elt, res, parser, sink, logger)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrResourceRead) {
			logger.Warn("skipping unreadable classfile",
				"path", res.Path(),
				"element", b.entry.ResolvedPath,
				"error", err)
			onRecoverable(fmt.Errorf("%s: %w", b.entry.ResolvedPath, err))
			continue
		}
		return fmt.Errorf("parse %s in %s: %w", res.Path(), b.entry.ResolvedPath, err)
	}
	return nil
}

// parseOne handles a single classfile match. The resource is released on
// every exit path: success, recoverable failure, or propagated failure.
func parseOne(elt Element, res Resource, parser Parser, sink RecordSink, logger *slog.Logger) (err error) {
	rc, openErr := res.Open()
	if openErr != nil {
		return fmt.Errorf("%w: open %s: %v", ErrResourceRead, res.Path(), openErr)
	}
	defer func() {
		cerr := rc.Close()
		if cerr == nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("%w: close %s: %v", ErrResourceRead, res.Path(), cerr)
			return
		}
		// The parser failure takes priority; the close failure is still logged.
		logger.Debug("closing classfile stream failed",
			"path", res.Path(), "error", cerr)
	}()

	rec, perr := parser.Parse(elt, res.Path(), rc, elt.base().spec)
	if perr != nil {
		return perr
	}
	if rec != nil {
		sink.Push(rec)
	}
	return nil
}
