package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage is the persistence contract behind an Engine.
// Implementations must make ClaimNext atomic: a job is handed to at most one caller.
type Storage interface {
	// Add inserts all jobs or none of them.
	Add(ctx context.Context, jobs ...*Job) error

	// ClaimNext flips the oldest eligible pending job to processing, increments
	// its attempts and stamps LastAttemptAt. Returns ErrNoJobToClaim when idle.
	ClaimNext(ctx context.Context, now time.Time) (*Job, error)

	// Update persists the mutable fields of a job.
	Update(ctx context.Context, job *Job) error

	// Get returns a job by ID or ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// List returns jobs newest first.
	List(ctx context.Context, filter Filter) ([]*Job, error)

	// Stats returns job counts per status.
	Stats(ctx context.Context) (Stats, error)

	// DeletePending removes every pending job and returns the removed IDs.
	DeletePending(ctx context.Context) ([]uuid.UUID, error)

	// Recover resets processing and retrying jobs left by a previous run to
	// pending. The interrupted attempt of a processing job is not counted.
	Recover(ctx context.Context) (int, error)

	// PromoteDue moves retrying jobs whose ScheduledFor has passed back to pending.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}

// ConcurrentStorage is implemented by storages that support more than one
// dispatch worker. Storages without it are served by a single worker.
type ConcurrentStorage interface {
	Storage
	MaxWorkers() int
}

// workerCount resolves the number of dispatch workers for s.
func workerCount(s Storage) int {
	if cs, ok := s.(ConcurrentStorage); ok {
		return max(1, cs.MaxWorkers())
	}
	return 1
}
