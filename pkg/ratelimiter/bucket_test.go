package ratelimiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ratelimiter.Config
		wantErr bool
	}{
		{name: "valid", cfg: ratelimiter.Config{Limit: 10, BurstCapacity: 20}},
		{name: "burst defaults to limit", cfg: ratelimiter.Config{Limit: 5}},
		{name: "fractional limit", cfg: ratelimiter.Config{Limit: 0.5, BurstCapacity: 1}},
		{name: "zero limit", cfg: ratelimiter.Config{Limit: 0, BurstCapacity: 1}, wantErr: true},
		{name: "negative limit", cfg: ratelimiter.Config{Limit: -1, BurstCapacity: 1}, wantErr: true},
		{name: "burst below limit", cfg: ratelimiter.Config{Limit: 10, BurstCapacity: 5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := ratelimiter.New(tt.cfg)
			if tt.wantErr {
				require.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, b)
			b.Destroy()
		})
	}
}

func TestNew_StartsFull(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.New(ratelimiter.Config{Limit: 5})
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	st := b.Status()
	assert.Equal(t, float64(5), st.Limit)
	assert.Equal(t, float64(5), st.BurstCapacity)
	assert.InDelta(t, 5, st.AvailableTokens, 0.01)
}

func TestBucket_BurstThenWait(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.New(ratelimiter.Config{Limit: 2, BurstCapacity: 2})
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, b.Acquire(ctx))
	require.NoError(t, b.Acquire(ctx))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "burst should be served immediately")

	start = time.Now()
	require.NoError(t, b.Acquire(ctx))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestBucket_SubUnitRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       ratelimiter.Config
		wantRefill time.Duration
	}{
		{name: "burst defaults to fractional limit", cfg: ratelimiter.Config{Limit: 0.9}, wantRefill: 1111 * time.Millisecond},
		{name: "explicit fractional burst", cfg: ratelimiter.Config{Limit: 0.8, BurstCapacity: 0.8}, wantRefill: 1250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := ratelimiter.New(tt.cfg)
			require.NoError(t, err)
			t.Cleanup(b.Destroy)

			st := b.Status()
			assert.Equal(t, float64(1), st.BurstCapacity)
			assert.InDelta(t, 1, st.AvailableTokens, 0.01)

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			start := time.Now()
			require.NoError(t, b.Acquire(ctx))
			assert.Less(t, time.Since(start), 100*time.Millisecond)

			start = time.Now()
			require.NoError(t, b.Acquire(ctx))
			assert.GreaterOrEqual(t, time.Since(start), tt.wantRefill-50*time.Millisecond)
		})
	}
}

func TestBucket_TinyLimitWaitsUntilDeadline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit float64
	}{
		{name: "one per thousand years", limit: 1.0 / (1000 * 365 * 24 * 3600)},
		{name: "near zero", limit: 1e-12},
		{name: "smallest positive", limit: 5e-324},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := ratelimiter.New(ratelimiter.Config{Limit: tt.limit})
			require.NoError(t, err)
			t.Cleanup(b.Destroy)

			require.NoError(t, b.Acquire(context.Background()))

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			start := time.Now()
			err = b.Acquire(ctx)
			require.ErrorIs(t, err, context.DeadlineExceeded)
			assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
			assert.Less(t, b.Status().AvailableTokens, float64(1))
		})
	}
}

func TestNewSequential(t *testing.T) {
	t.Parallel()

	t.Run("rejects non-positive limit", func(t *testing.T) {
		t.Parallel()
		_, err := ratelimiter.NewSequential(0)
		require.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})

	t.Run("spaces consecutive acquires", func(t *testing.T) {
		t.Parallel()

		b, err := ratelimiter.NewSequential(20)
		require.NoError(t, err)
		t.Cleanup(b.Destroy)

		assert.Equal(t, float64(1), b.Status().BurstCapacity)

		ctx := context.Background()
		start := time.Now()
		for range 3 {
			require.NoError(t, b.Acquire(ctx))
		}
		// first is immediate, the next two wait 50ms each
		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	})
}

func TestBucket_ContextCancel(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.NewSequential(0.1)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = b.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBucket_Destroy(t *testing.T) {
	t.Parallel()

	t.Run("wakes waiters", func(t *testing.T) {
		t.Parallel()

		b, err := ratelimiter.NewSequential(0.1)
		require.NoError(t, err)
		require.NoError(t, b.Acquire(context.Background()))

		errCh := make(chan error, 1)
		go func() { errCh <- b.Acquire(context.Background()) }()

		time.Sleep(20 * time.Millisecond)
		b.Destroy()

		select {
		case err := <-errCh:
			require.ErrorIs(t, err, ratelimiter.ErrLimiterDestroyed)
		case <-time.After(time.Second):
			t.Fatal("waiter was not released by Destroy")
		}
	})

	t.Run("later acquires fail fast", func(t *testing.T) {
		t.Parallel()

		b, err := ratelimiter.New(ratelimiter.Config{Limit: 100})
		require.NoError(t, err)
		b.Destroy()
		b.Destroy()

		require.ErrorIs(t, b.Acquire(context.Background()), ratelimiter.ErrLimiterDestroyed)
	})
}

func TestBucket_ConcurrentAcquire(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.New(ratelimiter.Config{Limit: 100, BurstCapacity: 100})
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Acquire(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.InDelta(t, 50, b.Status().AvailableTokens, 5)
}
