package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// wakeups keeps one cancellable timer per job that re-triggers dispatch
// when a delayed or retrying job becomes due.
type wakeups struct {
	mu     sync.Mutex
	clock  Clock
	timers map[uuid.UUID]Timer
}

func newWakeups(clock Clock) *wakeups {
	return &wakeups{
		clock:  clock,
		timers: make(map[uuid.UUID]Timer),
	}
}

// schedule replaces any pending timer for id.
func (w *wakeups) schedule(id uuid.UUID, d time.Duration, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[id]; ok {
		t.Stop()
	}

	var timer Timer
	timer = w.clock.AfterFunc(d, func() {
		w.mu.Lock()
		if w.timers[id] == timer {
			delete(w.timers, id)
		}
		w.mu.Unlock()
		fn()
	})
	w.timers[id] = timer
}

func (w *wakeups) cancel(ids ...uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range ids {
		if t, ok := w.timers[id]; ok {
			t.Stop()
			delete(w.timers, id)
		}
	}
}

func (w *wakeups) stopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}
