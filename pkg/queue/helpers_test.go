package queue_test

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

// fakeClock is a manually advanced queue.Clock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) queue.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		go t.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// countingSender records every call and delegates the outcome to fn.
type countingSender struct {
	total atomic.Int64

	mu    sync.Mutex
	calls map[string]int

	fn func(payload json.RawMessage, call int) (json.RawMessage, error)
}

func newCountingSender(fn func(payload json.RawMessage, call int) (json.RawMessage, error)) *countingSender {
	if fn == nil {
		fn = func(json.RawMessage, int) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		}
	}
	return &countingSender{calls: make(map[string]int), fn: fn}
}

func (s *countingSender) Send(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	s.total.Add(1)

	s.mu.Lock()
	s.calls[string(payload)]++
	n := s.calls[string(payload)]
	s.mu.Unlock()

	return s.fn(payload, n)
}

func (s *countingSender) Calls(payload string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[payload]
}

// MockBatchTracker is a mock implementation of queue.BatchTracker
type MockBatchTracker struct {
	mock.Mock
}

func (m *MockBatchTracker) ReserveBatch(batchID uuid.UUID, total int) {
	m.Called(batchID, total)
}

func (m *MockBatchTracker) ConfirmBatch(batchID uuid.UUID) {
	m.Called(batchID)
}

func (m *MockBatchTracker) CancelBatch(batchID uuid.UUID) {
	m.Called(batchID)
}

func (m *MockBatchTracker) RecordSuccess(batchID uuid.UUID) {
	m.Called(batchID)
}

func (m *MockBatchTracker) RecordFailure(batchID uuid.UUID) {
	m.Called(batchID)
}

// MockLimiter is a mock implementation of ratelimiter.Limiter
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Acquire(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newPendingJob(createdAt time.Time) *queue.Job {
	return &queue.Job{
		ID:          uuid.New(),
		Payload:     json.RawMessage(`{"to":"user@example.com"}`),
		Status:      queue.StatusPending,
		MaxAttempts: 3,
		CreatedAt:   createdAt,
	}
}

// lockedBuffer is a bytes.Buffer safe for concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Records decodes every JSON log line written so far.
func (b *lockedBuffer) Records(t *testing.T) []map[string]any {
	t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for line := range bytes.Lines(b.buf.Bytes()) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		out = append(out, rec)
	}
	return out
}

// rejectingStorage fails every insert and delegates everything else.
type rejectingStorage struct {
	queue.Storage
	err error
}

func (s *rejectingStorage) Add(context.Context, ...*queue.Job) error {
	return s.err
}
