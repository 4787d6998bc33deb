package ratelimiter

import "errors"

// Package-level error definitions for rate limiter operations.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLimiterDestroyed is returned by Acquire once the bucket has been destroyed.
	ErrLimiterDestroyed = errors.New("rate limiter destroyed")
)
