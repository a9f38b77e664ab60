package classscan

import (
	"log/slog"
	"runtime"

	"github.com/meigma/classscan/jarpool"
)

// config holds scan configuration assembled from options.
type config struct {
	workers         int // 0 = auto, <0 = serial, >0 = fixed count
	maxOpenArchives int64
	scanFiles       bool
	spec            Spec
	sink            RecordSink
	pool            *jarpool.Pool
	logger          *slog.Logger
}

// Option configures a scan.
type Option func(*config)

// WithWorkers sets the number of workers for the discovery and parse
// phases. Values < 0 force serial processing. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithLogger sets the structured log sink for scan diagnostics (masked
// duplicates, skipped elements, per-resource parse failures).
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithSpec sets the whitelist/blacklist filter deciding which relative
// paths qualify. If not set, every path qualifies.
func WithSpec(spec Spec) Option {
	return func(c *config) {
		c.spec = spec
	}
}

// WithSink sets the concurrent sink receiving parsed records.
// If not set, a MapSink is used and exposed on the Result.
func WithSink(sink RecordSink) Option {
	return func(c *config) {
		c.sink = sink
	}
}

// WithArchivePool shares a handle pool across scans. If not set, each scan
// uses its own pool.
func WithArchivePool(pool *jarpool.Pool) Option {
	return func(c *config) {
		c.pool = pool
	}
}

// WithMaxOpenArchives caps the number of archives held open at once when
// the scan creates its own pool. Values <= 0 use jarpool.DefaultMaxOpen.
func WithMaxOpenArchives(n int64) Option {
	return func(c *config) {
		c.maxOpenArchives = n
	}
}

// WithFileScanning controls whether elements populate their match lists
// (default true). When disabled, elements only establish identity and
// child-archive references, and the mask and parse phases are skipped.
func WithFileScanning(enabled bool) Option {
	return func(c *config) {
		c.scanFiles = enabled
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{scanFiles: true, spec: acceptAll{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// workerCount determines the number of workers for a phase with the given
// number of units of work.
func (c *config) workerCount(units int) int {
	if units < 2 || c.workers < 0 {
		return 1
	}
	workers := c.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > units {
		workers = units
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
