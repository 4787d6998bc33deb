package queue

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/backoff"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
)

// BatchTracker observes per-job outcomes of batches added through AddBatch.
// A batch is reserved before its jobs are stored, then either confirmed or,
// when the insert fails, cancelled.
type BatchTracker interface {
	ReserveBatch(batchID uuid.UUID, total int)
	ConfirmBatch(batchID uuid.UUID)
	CancelBatch(batchID uuid.UUID)
	RecordSuccess(batchID uuid.UUID)
	RecordFailure(batchID uuid.UUID)
}

// EngineOption is a functional option for configuring an Engine
type EngineOption func(*engineOptions)

type engineOptions struct {
	config  Config
	logger  *slog.Logger
	clock   Clock
	global  ratelimiter.Limiter
	backoff backoff.Strategy
	tracker BatchTracker
}

// WithConfig replaces the engine configuration. Zero fields take defaults.
func WithConfig(cfg Config) EngineOption {
	return func(o *engineOptions) {
		o.config = cfg
	}
}

// WithMaxAttempts sets the attempt ceiling for every job
func WithMaxAttempts(n int) EngineOption {
	return func(o *engineOptions) {
		if n > 0 {
			o.config.MaxAttempts = n
		}
	}
}

// WithRateLimit sets the per-engine sends per second
func WithRateLimit(limit float64) EngineOption {
	return func(o *engineOptions) {
		o.config.RateLimit = limit
	}
}

// WithPollInterval sets how often idle workers look for due jobs
func WithPollInterval(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		if d > 0 {
			o.config.PollInterval = d
		}
	}
}

// WithLogger sets a custom logger for the engine
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for scheduling and claims
func WithClock(clock Clock) EngineOption {
	return func(o *engineOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithGlobalLimiter sets the shared limiter consulted before the local one
func WithGlobalLimiter(l ratelimiter.Limiter) EngineOption {
	return func(o *engineOptions) {
		o.global = l
	}
}

// WithBackoff overrides the retry delay strategy
func WithBackoff(s backoff.Strategy) EngineOption {
	return func(o *engineOptions) {
		if s != nil {
			o.backoff = s
		}
	}
}

// WithBatchTracker attaches a tracker notified about batch job outcomes
func WithBatchTracker(t BatchTracker) EngineOption {
	return func(o *engineOptions) {
		o.tracker = t
	}
}

// AddOption is a functional option for Add
type AddOption func(*addOptions)

type addOptions struct {
	delay        time.Duration
	scheduledFor *time.Time
}

// WithDelay defers dispatch by d from now
func WithDelay(d time.Duration) AddOption {
	return func(o *addOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledFor defers dispatch until t
func WithScheduledFor(t time.Time) AddOption {
	return func(o *addOptions) {
		if !t.IsZero() {
			o.scheduledFor = &t
		}
	}
}
