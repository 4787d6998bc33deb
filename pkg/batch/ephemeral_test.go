package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/batch"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

func fastEngine() batch.EphemeralOption {
	return batch.WithEngineOptions(
		queue.WithRateLimit(1000),
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithMaxAttempts(2),
	)
}

func assertRemoved(t *testing.T, path string) {
	t.Helper()
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_, err := os.Stat(p)
		assert.True(t, errors.Is(err, os.ErrNotExist), "%s still exists", p)
	}
}

func TestEphemeral_RunsBatchToCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	var calls atomic.Int32
	sender := queue.SenderFunc(func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		calls.Add(1)
		if string(payload) == `"bounce@example.com"` {
			return nil, errors.New("mailbox unavailable")
		}
		return json.RawMessage(`{"id":"msg"}`), nil
	})

	eb, err := batch.NewEphemeral(ctx, sender,
		batch.WithDir(dir),
		batch.WithEphemeralLogger(discardLogger),
		fastEngine())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch-"+eb.ID().String()+".db"), eb.Path())
	assert.FileExists(t, eb.Path())

	jobs, err := eb.AddBatch(ctx, "a@example.com", "b@example.com", "bounce@example.com")
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	require.NoError(t, eb.Start(ctx))

	summary, err := eb.WaitForCompletion(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, *jobs[0].BatchID, summary.BatchID)
	assert.Equal(t, 2, summary.TotalSent)
	assert.Equal(t, 1, summary.TotalFailed)
	assert.Equal(t, int32(4), calls.Load())

	// A second wait returns the same summary immediately.
	again, err := eb.WaitForCompletion(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, summary, again)

	require.NoError(t, eb.Destroy())
	assertRemoved(t, eb.Path())
	assert.NoError(t, eb.Destroy())
}

func TestEphemeral_TimeoutDoesNotStopProcessing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	release := make(chan struct{})
	sender := queue.SenderFunc(func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		select {
		case <-release:
			return json.RawMessage(`{}`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	eb, err := batch.NewEphemeral(ctx, sender,
		batch.WithDir(t.TempDir()),
		batch.WithEphemeralLogger(discardLogger),
		fastEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eb.Destroy() })

	_, err = eb.AddBatch(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, eb.Start(ctx))

	_, err = eb.WaitForCompletion(ctx, 50*time.Millisecond)
	assert.ErrorIs(t, err, batch.ErrWaitTimeout)

	close(release)

	summary, err := eb.WaitForCompletion(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSent)
}

func TestEphemeral_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	sender := queue.SenderFunc(func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	eb, err := batch.NewEphemeral(context.Background(), sender,
		batch.WithDir(t.TempDir()),
		batch.WithEphemeralLogger(discardLogger),
		fastEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eb.Destroy() })

	_, err = eb.AddBatch(context.Background(), "a@example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = eb.WaitForCompletion(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEphemeral_Guards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sender := queue.SenderFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})

	t.Run("nil sender", func(t *testing.T) {
		t.Parallel()

		_, err := batch.NewEphemeral(ctx, nil, batch.WithDir(t.TempDir()))
		assert.ErrorIs(t, err, batch.ErrSenderNil)
	})

	t.Run("invalid webhook removes the store", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		_, err := batch.NewEphemeral(ctx, sender,
			batch.WithDir(dir),
			batch.WithEphemeralLogger(discardLogger),
			batch.WithMonitorOptions(batch.WithWebhook("http://127.0.0.1/hook", "")))
		require.ErrorIs(t, err, batch.ErrInvalidWebhook)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("wait before add", func(t *testing.T) {
		t.Parallel()

		eb, err := batch.NewEphemeral(ctx, sender,
			batch.WithDir(t.TempDir()), batch.WithEphemeralLogger(discardLogger))
		require.NoError(t, err)
		t.Cleanup(func() { _ = eb.Destroy() })

		_, err = eb.WaitForCompletion(ctx, time.Millisecond)
		assert.ErrorIs(t, err, batch.ErrNoBatch)
	})

	t.Run("one batch per ephemeral", func(t *testing.T) {
		t.Parallel()

		eb, err := batch.NewEphemeral(ctx, sender,
			batch.WithDir(t.TempDir()), batch.WithEphemeralLogger(discardLogger))
		require.NoError(t, err)
		t.Cleanup(func() { _ = eb.Destroy() })

		_, err = eb.AddBatch(ctx)
		assert.ErrorIs(t, err, queue.ErrNoItemsToEnqueue)

		_, err = eb.AddBatch(ctx, "a@example.com")
		require.NoError(t, err)
		_, err = eb.AddBatch(ctx, "b@example.com")
		assert.ErrorIs(t, err, batch.ErrBatchExists)
	})

	t.Run("destroy without start", func(t *testing.T) {
		t.Parallel()

		eb, err := batch.NewEphemeral(ctx, sender,
			batch.WithDir(t.TempDir()), batch.WithEphemeralLogger(discardLogger))
		require.NoError(t, err)
		_, err = eb.AddBatch(ctx, "a@example.com")
		require.NoError(t, err)

		require.NoError(t, eb.Destroy())
		assertRemoved(t, eb.Path())

		assert.ErrorIs(t, eb.Start(ctx), batch.ErrDestroyed)
		_, err = eb.AddBatch(ctx, "b@example.com")
		assert.ErrorIs(t, err, batch.ErrDestroyed)
		_, err = eb.WaitForCompletion(ctx, time.Second)
		assert.ErrorIs(t, err, batch.ErrDestroyed)
	})
}
