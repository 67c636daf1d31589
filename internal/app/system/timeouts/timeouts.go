// Package timeouts holds the deadlines applied to handler I/O.
//
// Tiers:
//   - Ping: health checks
//   - Short: single-document reads and writes (login, contact form)
//   - Fetch: reading complete datasets for a chart
//   - Export: building and publishing an export file
//   - Import: parsing and writing an uploaded dataset
//
// Values start at the defaults below and may be replaced once at startup
// with Configure.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults used until Configure is called.
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultFetch  = 30 * time.Second
	DefaultExport = 30 * time.Second
	DefaultImport = 2 * time.Minute
)

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Fetch  time.Duration
	Export time.Duration
	Import time.Duration
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func defaults() Config {
	return Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Fetch:  DefaultFetch,
		Export: DefaultExport,
		Import: DefaultImport,
	}
}

// Ping returns the health-check timeout.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short returns the timeout for single-document operations.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Fetch returns the timeout for reading the datasets behind one chart.
func Fetch() time.Duration { return get(func(c Config) time.Duration { return c.Fetch }) }

// Export returns the timeout for producing and publishing one export.
func Export() time.Duration { return get(func(c Config) time.Duration { return c.Export }) }

// Import returns the timeout for one dataset import.
func Import() time.Duration { return get(func(c Config) time.Duration { return c.Import }) }

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(cur)
}

// Configure replaces the non-zero fields of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		cur.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		cur.Short = cfg.Short
	}
	if cfg.Fetch > 0 {
		cur.Fetch = cfg.Fetch
	}
	if cfg.Export > 0 {
		cur.Export = cfg.Export
	}
	if cfg.Import > 0 {
		cur.Import = cfg.Import
	}
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// WithTimeout derives a context with the given timeout. The returned
// cancel func logs a warning when the deadline was hit, naming operation.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Fetch(), h.Log, "chart fetch")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
