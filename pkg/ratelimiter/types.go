package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Limiter is the acquire-only view of a rate limiter handed to send paths.
type Limiter interface {
	// Acquire blocks until a token is available and consumes it.
	Acquire(ctx context.Context) error
}

// Config defines the token bucket configuration.
type Config struct {
	Limit         float64 `env:"RATE_LIMIT" envDefault:"10"`     // Tokens added per second
	BurstCapacity float64 `env:"RATE_LIMIT_BURST" envDefault:"0"` // Maximum tokens; 0 means Limit
}

// Status is a point-in-time snapshot of a bucket.
type Status struct {
	Limit           float64   `json:"limit"`
	AvailableTokens float64   `json:"available_tokens"`
	BurstCapacity   float64   `json:"burst_capacity"`
	LastRefill      time.Time `json:"last_refill"`
}

func (c Config) withDefaults() Config {
	if c.BurstCapacity == 0 {
		c.BurstCapacity = c.Limit
	}
	return c
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %v", ErrInvalidConfig, c.Limit)
	}
	if c.BurstCapacity < c.Limit {
		return fmt.Errorf("%w: burst capacity must be at least the limit, got %v < %v", ErrInvalidConfig, c.BurstCapacity, c.Limit)
	}
	return nil
}
