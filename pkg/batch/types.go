package batch

import (
	"time"

	"github.com/google/uuid"
)

// Webhook event types.
const (
	EventStarted   = "batch.started"
	EventProgress  = "batch.progress"
	EventCompleted = "batch.completed"
)

// Progress is a snapshot of a running batch.
type Progress struct {
	BatchID   uuid.UUID `json:"batchId"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Processed int       `json:"processed"`
	Percent   float64   `json:"percent"`
	StartedAt time.Time `json:"startedAt"`
	ElapsedMs int64     `json:"elapsedMs"`
}

// Summary is delivered once, when every job of a batch reached a terminal status.
type Summary struct {
	BatchID     uuid.UUID `json:"batchId"`
	TotalSent   int       `json:"totalSent"`
	TotalFailed int       `json:"totalFailed"`
	DurationMs  int64     `json:"durationMs"`
}

// Event is the body POSTed to the batch webhook.
// Data is a Progress for started and progress events and a Summary for completed.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type state struct {
	total        int
	completed    int
	failed       int
	startedAt    time.Time
	lastNotified int
	announced    bool
}

func (s *state) processed() int {
	return s.completed + s.failed
}

func (s *state) progress(id uuid.UUID, now time.Time) Progress {
	p := Progress{
		BatchID:   id,
		Total:     s.total,
		Completed: s.completed,
		Failed:    s.failed,
		Processed: s.processed(),
		StartedAt: s.startedAt,
		ElapsedMs: now.Sub(s.startedAt).Milliseconds(),
	}
	if s.total > 0 {
		p.Percent = float64(p.Processed) * 100 / float64(s.total)
	}
	return p
}

// shouldNotify reports whether the outcome just recorded crosses a percentage
// step or the job-count threshold since the last progress notification.
func (s *state) shouldNotify(percentStep, everyJobs int) bool {
	processed := s.processed()
	if processed-s.lastNotified >= everyJobs {
		return true
	}
	step := func(n int) int { return n * 100 / s.total / percentStep }
	return step(processed) > step(s.lastNotified)
}
