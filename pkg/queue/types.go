package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetrying   Status = "retrying"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRetrying:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DefaultListLimit is applied when Filter.Limit is not positive.
const DefaultListLimit = 100

// Job represents a unit of dispatched work with its own retry state
type Job struct {
	ID            uuid.UUID       `json:"id"`
	BatchID       *uuid.UUID      `json:"batch_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	ScheduledFor  *time.Time      `json:"scheduled_for,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.BatchID != nil {
		id := *j.BatchID
		c.BatchID = &id
	}
	if j.LastAttemptAt != nil {
		t := *j.LastAttemptAt
		c.LastAttemptAt = &t
	}
	if j.ScheduledFor != nil {
		t := *j.ScheduledFor
		c.ScheduledFor = &t
	}
	if j.Payload != nil {
		c.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	return &c
}

// Eligible reports whether the job may be claimed at now.
func (j *Job) Eligible(now time.Time) bool {
	return j.Status == StatusPending && (j.ScheduledFor == nil || !j.ScheduledFor.After(now))
}

// Filter narrows a job listing. Zero Status matches every status.
type Filter struct {
	Status Status
	Limit  int
	Offset int
}

// Stats holds job counts per status.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
	Total      int `json:"total"`
}

// Add increments the counter for status by n.
func (s *Stats) Add(status Status, n int) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusProcessing:
		s.Processing += n
	case StatusCompleted:
		s.Completed += n
	case StatusFailed:
		s.Failed += n
	case StatusRetrying:
		s.Retrying += n
	default:
		return
	}
	s.Total += n
}
