package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// tokenEpsilon absorbs float rounding after sleeping exactly the computed wait.
	tokenEpsilon = 1e-9

	// maxWait caps a single sleep; Acquire re-checks the bucket after it.
	maxWait = time.Hour
)

// Bucket implements a blocking token bucket with continuous refill.
// Acquisitions are served one at a time in arrival order of the turn channel.
type Bucket struct {
	limit float64
	// capacity is the burst, raised to one token so a bucket slower than
	// 1/s can still fill up to a whole token.
	capacity float64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	turn        chan struct{}
	done        chan struct{}
	destroyOnce sync.Once
}

// New creates a token bucket. The bucket starts full.
func New(cfg Config) (*Bucket, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newBucket(cfg.Limit, cfg.BurstCapacity), nil
}

// NewSequential creates a bucket holding at most one token, so consumers are
// paced at exactly 1/limit apart regardless of any upstream burst allowance.
func NewSequential(limit float64) (*Bucket, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %v", ErrInvalidConfig, limit)
	}
	return newBucket(limit, 1), nil
}

func newBucket(limit, burst float64) *Bucket {
	capacity := max(burst, 1)
	return &Bucket{
		limit:      limit,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
		turn:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Acquire blocks until one token is available, then consumes it.
// It returns ctx.Err() if the context ends first and ErrLimiterDestroyed
// if the bucket is destroyed before or while waiting.
func (b *Bucket) Acquire(ctx context.Context) error {
	select {
	case <-b.done:
		return ErrLimiterDestroyed
	default:
	}

	select {
	case b.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrLimiterDestroyed
	}
	defer func() { <-b.turn }()

	for {
		wait := b.reserve()
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-b.done:
			timer.Stop()
			return ErrLimiterDestroyed
		}
	}
}

// reserve consumes a token and returns 0, or returns how long until one accrues.
func (b *Bucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	if b.tokens+tokenEpsilon >= 1 {
		b.tokens = max(b.tokens-1, 0)
		return 0
	}

	missing := 1 - b.tokens
	wait := missing / b.limit * float64(time.Second)
	if wait > float64(maxWait) {
		return maxWait
	}
	return max(time.Duration(wait), time.Microsecond)
}

// refill must be called with mu held.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.capacity, b.tokens+elapsed.Seconds()*b.limit)
	b.lastRefill = now
}

// Status returns the current state without consuming tokens. BurstCapacity
// reports the effective capacity, which is never below one token.
func (b *Bucket) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	return Status{
		Limit:           b.limit,
		AvailableTokens: b.tokens,
		BurstCapacity:   b.capacity,
		LastRefill:      b.lastRefill,
	}
}

// Destroy releases waiters and makes every later Acquire fail fast.
// Safe to call multiple times.
func (b *Bucket) Destroy() {
	b.destroyOnce.Do(func() {
		close(b.done)
	})
}
