package backoff

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultJitterFactor is the upper bound of the jitter added on top of the
// exponential delay, expressed as a fraction of that delay.
const DefaultJitterFactor = 0.25

// Strategy computes the delay before a retry attempt.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Delay returns how long to wait before attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// Exponential implements exponential backoff with positive jitter.
// Formula: min(Base * 2^(attempt-1) * (1 + r*JitterFactor), Max), r in [0, 1).
type Exponential struct {
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64

	random func() float64
}

// Option configures an Exponential strategy.
type Option func(*Exponential)

// WithRandom replaces the random source. fn must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(e *Exponential) {
		if fn != nil {
			e.random = fn
		}
	}
}

// WithSeed makes the jitter reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Exponential) {
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		var mu sync.Mutex
		e.random = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return r.Float64()
		}
	}
}

// WithJitterFactor overrides DefaultJitterFactor. Zero disables jitter.
func WithJitterFactor(f float64) Option {
	return func(e *Exponential) {
		if f >= 0 {
			e.JitterFactor = f
		}
	}
}

// NewExponential creates an exponential strategy with 25% jitter.
func NewExponential(base, maxDelay time.Duration, opts ...Option) *Exponential {
	e := &Exponential{
		Base:         base,
		Max:          maxDelay,
		JitterFactor: DefaultJitterFactor,
		random:       rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Delay returns the delay for the given attempt. Attempts below 1 yield zero.
func (e *Exponential) Delay(attempt int) time.Duration {
	random := e.random
	if random == nil {
		random = rand.Float64
	}
	return compute(attempt, e.Base, e.Max, e.JitterFactor, random)
}

// Delay is the package-level form of Exponential.Delay with default jitter and
// the global random source.
func Delay(attempt int, base, maxDelay time.Duration) time.Duration {
	return compute(attempt, base, maxDelay, DefaultJitterFactor, rand.Float64)
}

func compute(attempt int, base, maxDelay time.Duration, jitter float64, random func() float64) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}

	interval := float64(base) * math.Pow(2, float64(attempt-1))
	if jitter > 0 {
		interval += interval * jitter * random()
	}

	// Large attempt numbers overflow float64 -> Duration conversion without the cap.
	if maxDelay > 0 && interval > float64(maxDelay) {
		return maxDelay
	}
	if interval > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(interval)
}

// Fixed returns the same delay for every attempt.
type Fixed struct {
	Interval time.Duration
}

// Delay always returns the configured interval.
func (f Fixed) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}
