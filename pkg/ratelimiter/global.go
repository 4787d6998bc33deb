package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
)

// Global is the process-wide limiter shared by every engine and direct-send
// call site. Construct one at wiring time and pass it by reference.
// Until Configure succeeds, Acquire does not limit.
type Global struct {
	mu     sync.RWMutex
	bucket *Bucket
	logger *slog.Logger
}

// GlobalOption configures a Global limiter.
type GlobalOption func(*Global)

// WithLogger sets the logger used for configuration warnings.
func WithLogger(logger *slog.Logger) GlobalOption {
	return func(g *Global) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGlobal creates an unconfigured shared limiter.
func NewGlobal(opts ...GlobalOption) *Global {
	g := &Global{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configure sets up the shared bucket. Invalid configuration is returned as
// an error; configuring an already configured limiter is a no-op that logs a
// warning. Call Reset first to reconfigure.
func (g *Global) Configure(cfg Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.bucket != nil {
		g.logger.Warn("global rate limiter already configured, ignoring new configuration",
			slog.Float64("limit", cfg.Limit),
			slog.Float64("burst_capacity", cfg.BurstCapacity))
		return nil
	}

	b, err := New(cfg)
	if err != nil {
		return err
	}
	g.bucket = b
	return nil
}

// Configured reports whether Configure has succeeded since the last Reset.
func (g *Global) Configured() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bucket != nil
}

// Acquire waits for a token from the shared bucket.
func (g *Global) Acquire(ctx context.Context) error {
	g.mu.RLock()
	b := g.bucket
	g.mu.RUnlock()

	if b == nil {
		return nil
	}
	return b.Acquire(ctx)
}

// Status returns the shared bucket status and whether it is configured.
func (g *Global) Status() (Status, bool) {
	g.mu.RLock()
	b := g.bucket
	g.mu.RUnlock()

	if b == nil {
		return Status{}, false
	}
	return b.Status(), true
}

// Reset destroys the shared bucket and returns the limiter to the
// unconfigured state. Intended for tests and controlled reconfiguration.
func (g *Global) Reset() {
	g.mu.Lock()
	b := g.bucket
	g.bucket = nil
	g.mu.Unlock()

	if b != nil {
		b.Destroy()
	}
}
