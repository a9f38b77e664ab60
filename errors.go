package classscan

import "errors"

var (
	// ErrResourceRead marks a recoverable per-resource failure: the resource
	// could not be opened or its bytes could not be read. Parsers should wrap
	// stream failures with this sentinel; the dispatcher logs and continues
	// with the next resource. Any other parser error is fatal for the scan.
	ErrResourceRead = errors.New("resource unreadable")

	// ErrElementSkipped wraps the cause recorded when a classpath element's
	// backing store was unreadable at discovery. Aggregated on Result.SkipErrors.
	ErrElementSkipped = errors.New("classpath element skipped")
)
