package backoff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/backoff"
)

func TestExponential_NoJitter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		base     time.Duration
		max      time.Duration
		attempts []int
		want     []time.Duration
	}{
		{
			name:     "doubles each attempt",
			base:     time.Second,
			max:      time.Hour,
			attempts: []int{1, 2, 3, 4},
			want:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
		{
			name:     "capped at max",
			base:     500 * time.Millisecond,
			max:      3 * time.Second,
			attempts: []int{1, 3, 4, 10},
			want:     []time.Duration{500 * time.Millisecond, 2 * time.Second, 3 * time.Second, 3 * time.Second},
		},
		{
			name:     "non-positive attempts return zero",
			base:     time.Second,
			max:      time.Minute,
			attempts: []int{0, -3},
			want:     []time.Duration{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Len(t, tt.want, len(tt.attempts), "test setup error")

			b := backoff.NewExponential(tt.base, tt.max, backoff.WithJitterFactor(0))
			for i, attempt := range tt.attempts {
				assert.Equal(t, tt.want[i], b.Delay(attempt), "attempt %d", attempt)
			}
		})
	}
}

func TestExponential_JitterBounds(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	maxDelay := time.Minute

	for attempt := 1; attempt <= 8; attempt++ {
		lower := base * time.Duration(1<<(attempt-1))
		upper := min(maxDelay, lower+lower/4)

		for range 200 {
			got := backoff.Delay(attempt, base, maxDelay)
			assert.GreaterOrEqual(t, got, lower, "attempt %d", attempt)
			assert.LessOrEqual(t, got, upper, "attempt %d", attempt)
		}
	}
}

func TestExponential_RandomSource(t *testing.T) {
	t.Parallel()

	t.Run("max jitter adds a quarter", func(t *testing.T) {
		t.Parallel()

		b := backoff.NewExponential(time.Second, time.Hour, backoff.WithRandom(func() float64 { return 0.9999999999 }))
		got := b.Delay(3)
		assert.InDelta(t, float64(5*time.Second), float64(got), float64(time.Millisecond))
	})

	t.Run("zero random keeps base value", func(t *testing.T) {
		t.Parallel()

		b := backoff.NewExponential(time.Second, time.Hour, backoff.WithRandom(func() float64 { return 0 }))
		assert.Equal(t, 4*time.Second, b.Delay(3))
	})

	t.Run("same seed same sequence", func(t *testing.T) {
		t.Parallel()

		a := backoff.NewExponential(time.Second, time.Hour, backoff.WithSeed(42))
		b := backoff.NewExponential(time.Second, time.Hour, backoff.WithSeed(42))
		for attempt := 1; attempt <= 5; attempt++ {
			assert.Equal(t, a.Delay(attempt), b.Delay(attempt))
		}
	})

	t.Run("cap applies after jitter", func(t *testing.T) {
		t.Parallel()

		b := backoff.NewExponential(time.Second, 4500*time.Millisecond, backoff.WithRandom(func() float64 { return 0.99 }))
		assert.Equal(t, 4500*time.Millisecond, b.Delay(3))
	})
}

func TestExponential_HugeAttemptDoesNotOverflow(t *testing.T) {
	t.Parallel()

	b := backoff.NewExponential(time.Second, time.Minute)
	assert.Equal(t, time.Minute, b.Delay(500))
}

func TestFixed(t *testing.T) {
	t.Parallel()

	f := backoff.Fixed{Interval: 250 * time.Millisecond}
	assert.Equal(t, time.Duration(0), f.Delay(0))
	assert.Equal(t, 250*time.Millisecond, f.Delay(1))
	assert.Equal(t, 250*time.Millisecond, f.Delay(7))

	var _ backoff.Strategy = f
	var _ backoff.Strategy = backoff.NewExponential(time.Second, time.Minute)
}
