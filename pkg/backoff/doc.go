// Package backoff computes retry delays.
//
// The queue engine uses Exponential to space out attempts of a failed job: the
// delay for attempt n is Base * 2^(n-1) plus a random jitter of up to 25% of
// that value, capped at Max. The webhook sender reuses the same Strategy
// interface for its delivery retries.
//
// # Usage
//
//	b := backoff.NewExponential(time.Second, time.Minute)
//	delay := b.Delay(3) // between 4s and 5s
//
// The random source can be replaced for deterministic tests:
//
//	b := backoff.NewExponential(time.Second, time.Minute, backoff.WithRandom(func() float64 { return 0 }))
package backoff
