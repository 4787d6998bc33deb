// Package ratelimiter provides a blocking token bucket used to pace outbound sends.
//
// Tokens accrue continuously at Limit per second up to BurstCapacity, which is
// raised to one token when smaller so fractional rates still make progress. Acquire
// waits for the next token instead of rejecting the caller, which makes the
// bucket suitable for pacing a dispatch loop rather than shedding HTTP load.
//
// Two tiers are used by the queue:
//
//   - Global: one shared limiter per process, configured once at wiring time
//     and consulted first by every send path.
//   - NewSequential: a private per-engine bucket with a capacity of one token
//     that enforces strict local pacing even when the global tier allows bursts.
//
// # Usage
//
//	global := ratelimiter.NewGlobal()
//	if err := global.Configure(ratelimiter.Config{Limit: 10, BurstCapacity: 20}); err != nil {
//		log.Fatal(err)
//	}
//
//	if err := global.Acquire(ctx); err != nil {
//		return err // context cancelled or limiter destroyed
//	}
//
// # Error Handling
//
// Invalid configuration is reported eagerly by New, NewSequential and
// Global.Configure wrapped in ErrInvalidConfig. After Destroy (or Global.Reset)
// waiting and future Acquire calls return ErrLimiterDestroyed immediately.
package ratelimiter
