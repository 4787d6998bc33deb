// Package queuetest provides a behavioural test suite shared by queue.Storage
// implementations.
package queuetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

// Factory returns an empty storage. Cleanup should be registered on t.
type Factory func(t *testing.T) queue.Storage

// base is truncated to milliseconds so backends that persist epoch millis
// round-trip timestamps exactly.
var base = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// NewJob builds a pending job created at base+offset.
func NewJob(offset time.Duration) *queue.Job {
	return &queue.Job{
		ID:          uuid.New(),
		Payload:     json.RawMessage(fmt.Sprintf(`{"n":%d}`, offset.Milliseconds())),
		Status:      queue.StatusPending,
		MaxAttempts: 3,
		CreatedAt:   base.Add(offset),
	}
}

// RunStorageSuite exercises the queue.Storage contract.
func RunStorageSuite(t *testing.T, newStorage Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("add and get", func(t *testing.T) {
		s := newStorage(t)
		batchID := uuid.New()
		job := NewJob(0)
		job.BatchID = &batchID

		require.NoError(t, s.Add(ctx, job))

		got, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, batchID, *got.BatchID)
		assert.JSONEq(t, string(job.Payload), string(got.Payload))
		assert.Equal(t, queue.StatusPending, got.Status)
		assert.Equal(t, 0, got.Attempts)
		assert.Equal(t, 3, got.MaxAttempts)
		assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.LastAttemptAt)
		assert.Nil(t, got.ScheduledFor)
	})

	t.Run("get missing job", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Get(ctx, uuid.New())
		require.ErrorIs(t, err, queue.ErrJobNotFound)
	})

	t.Run("add is atomic", func(t *testing.T) {
		s := newStorage(t)
		existing := NewJob(0)
		require.NoError(t, s.Add(ctx, existing))

		fresh := NewJob(time.Second)
		err := s.Add(ctx, fresh, existing)
		require.Error(t, err)

		_, err = s.Get(ctx, fresh.ID)
		require.ErrorIs(t, err, queue.ErrJobNotFound, "partial batch must not be stored")

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
	})

	t.Run("claim next is FIFO and skips future jobs", func(t *testing.T) {
		s := newStorage(t)
		first := NewJob(time.Second)
		second := NewJob(2 * time.Second)
		delayed := NewJob(0)
		future := base.Add(time.Hour)
		delayed.ScheduledFor = &future

		require.NoError(t, s.Add(ctx, second, delayed, first))

		now := base.Add(time.Minute)
		got, err := s.ClaimNext(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, queue.StatusProcessing, got.Status)
		assert.Equal(t, 1, got.Attempts)
		require.NotNil(t, got.LastAttemptAt)
		assert.True(t, now.Equal(*got.LastAttemptAt))

		got, err = s.ClaimNext(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)

		_, err = s.ClaimNext(ctx, now)
		require.ErrorIs(t, err, queue.ErrNoJobToClaim)

		got, err = s.ClaimNext(ctx, future)
		require.NoError(t, err)
		assert.Equal(t, delayed.ID, got.ID)
	})

	t.Run("concurrent claims never share a job", func(t *testing.T) {
		s := newStorage(t)
		jobs := make([]*queue.Job, 50)
		for i := range jobs {
			jobs[i] = NewJob(time.Duration(i) * time.Millisecond)
		}
		require.NoError(t, s.Add(ctx, jobs...))

		var (
			mu      sync.Mutex
			claimed = make(map[uuid.UUID]int)
			wg      sync.WaitGroup
		)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					job, err := s.ClaimNext(ctx, base.Add(time.Hour))
					if err != nil {
						return
					}
					mu.Lock()
					claimed[job.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, len(jobs))
		for id, n := range claimed {
			assert.Equal(t, 1, n, "job %s claimed more than once", id)
		}
	})

	t.Run("update persists mutable fields", func(t *testing.T) {
		s := newStorage(t)
		job := NewJob(0)
		require.NoError(t, s.Add(ctx, job))

		claimed, err := s.ClaimNext(ctx, base.Add(time.Second))
		require.NoError(t, err)

		due := base.Add(time.Minute)
		claimed.Status = queue.StatusRetrying
		claimed.ScheduledFor = &due
		claimed.LastError = "smtp timeout"
		require.NoError(t, s.Update(ctx, claimed))

		got, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusRetrying, got.Status)
		assert.Equal(t, "smtp timeout", got.LastError)
		require.NotNil(t, got.ScheduledFor)
		assert.True(t, due.Equal(*got.ScheduledFor))

		got.Status = queue.StatusCompleted
		got.Result = json.RawMessage(`{"id":"msg-1"}`)
		got.LastError = ""
		got.ScheduledFor = nil
		require.NoError(t, s.Update(ctx, got))

		got, err = s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCompleted, got.Status)
		assert.JSONEq(t, `{"id":"msg-1"}`, string(got.Result))
		assert.Empty(t, got.LastError)
		assert.Nil(t, got.ScheduledFor)

		missing := NewJob(0)
		require.ErrorIs(t, s.Update(ctx, missing), queue.ErrJobNotFound)
	})

	t.Run("list is newest first with filter and paging", func(t *testing.T) {
		s := newStorage(t)
		jobs := []*queue.Job{NewJob(0), NewJob(time.Second), NewJob(2 * time.Second), NewJob(3 * time.Second)}
		require.NoError(t, s.Add(ctx, jobs...))

		claimed, err := s.ClaimNext(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, jobs[0].ID, claimed.ID)

		all, err := s.List(ctx, queue.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, jobs[3].ID, all[0].ID)
		assert.Equal(t, jobs[0].ID, all[3].ID)

		page, err := s.List(ctx, queue.Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, jobs[2].ID, page[0].ID)
		assert.Equal(t, jobs[1].ID, page[1].ID)

		pending, err := s.List(ctx, queue.Filter{Status: queue.StatusPending})
		require.NoError(t, err)
		assert.Len(t, pending, 3)

		processing, err := s.List(ctx, queue.Filter{Status: queue.StatusProcessing})
		require.NoError(t, err)
		require.Len(t, processing, 1)
		assert.Equal(t, jobs[0].ID, processing[0].ID)

		empty, err := s.List(ctx, queue.Filter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, empty)

		_, err = s.List(ctx, queue.Filter{Status: "bogus"})
		require.ErrorIs(t, err, queue.ErrInvalidFilter)
	})

	t.Run("stats are stable without mutation", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Add(ctx, NewJob(0), NewJob(time.Second), NewJob(2*time.Second)))
		_, err := s.ClaimNext(ctx, base.Add(time.Hour))
		require.NoError(t, err)

		first, err := s.Stats(ctx)
		require.NoError(t, err)
		second, err := s.Stats(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, queue.Stats{Pending: 2, Processing: 1, Total: 3}, first)
	})

	t.Run("delete pending leaves other jobs", func(t *testing.T) {
		s := newStorage(t)
		done := NewJob(0)
		require.NoError(t, s.Add(ctx, done))
		claimed, err := s.ClaimNext(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		claimed.Status = queue.StatusCompleted
		require.NoError(t, s.Update(ctx, claimed))

		pending := []*queue.Job{NewJob(time.Second), NewJob(2 * time.Second), NewJob(3 * time.Second)}
		require.NoError(t, s.Add(ctx, pending...))

		ids, err := s.DeletePending(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, 3)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Completed: 1, Total: 1}, stats)
	})

	t.Run("recover resets interrupted jobs", func(t *testing.T) {
		s := newStorage(t)
		interrupted := NewJob(0)
		retrying := NewJob(time.Second)
		require.NoError(t, s.Add(ctx, interrupted, retrying))

		_, err := s.ClaimNext(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		r, err := s.ClaimNext(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		due := base.Add(2 * time.Hour)
		r.Status = queue.StatusRetrying
		r.ScheduledFor = &due
		require.NoError(t, s.Update(ctx, r))

		n, err := s.Recover(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.Get(ctx, interrupted.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusPending, got.Status)
		assert.Equal(t, 0, got.Attempts, "interrupted attempt is not counted")

		got, err = s.Get(ctx, retrying.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusPending, got.Status)
		assert.Equal(t, 1, got.Attempts)

		n, err = s.Recover(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("promote due moves only elapsed retries", func(t *testing.T) {
		s := newStorage(t)
		soon := NewJob(0)
		later := NewJob(time.Second)
		require.NoError(t, s.Add(ctx, soon, later))

		for _, delay := range []time.Duration{time.Minute, time.Hour} {
			j, err := s.ClaimNext(ctx, base.Add(time.Second))
			require.NoError(t, err)
			due := base.Add(delay)
			j.Status = queue.StatusRetrying
			j.ScheduledFor = &due
			require.NoError(t, s.Update(ctx, j))
		}

		n, err := s.PromoteDue(ctx, base.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.Get(ctx, soon.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusPending, got.Status)

		got, err = s.Get(ctx, later.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusRetrying, got.Status)
	})
}
