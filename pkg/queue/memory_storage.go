package queue

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in process memory.
// It reports no ConcurrentStorage support, so an engine over it never has
// more than one send in flight.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*memoryRecord
	seq  uint64

	// Indexes for efficient queries
	byStatus map[Status][]uuid.UUID
}

type memoryRecord struct {
	job *Job
	seq uint64
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:     make(map[uuid.UUID]*memoryRecord),
		byStatus: make(map[Status][]uuid.UUID),
	}
}

// Add implements Storage
func (ms *MemoryStorage) Add(_ context.Context, jobs ...*Job) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(jobs))
	for _, job := range jobs {
		if job == nil {
			return fmt.Errorf("%w: nil job", ErrJobCreate)
		}
		if _, exists := ms.jobs[job.ID]; exists {
			return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
		}
		if _, dup := seen[job.ID]; dup {
			return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
		}
		seen[job.ID] = struct{}{}
	}

	for _, job := range jobs {
		ms.seq++
		ms.jobs[job.ID] = &memoryRecord{job: job.Clone(), seq: ms.seq}
		ms.byStatus[job.Status] = append(ms.byStatus[job.Status], job.ID)
	}

	return nil
}

// ClaimNext implements Storage
func (ms *MemoryStorage) ClaimNext(_ context.Context, now time.Time) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var best *memoryRecord
	for _, id := range ms.byStatus[StatusPending] {
		rec := ms.jobs[id]
		if !rec.job.Eligible(now) {
			continue
		}
		if best == nil || rec.before(best) {
			best = rec
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	job := best.job
	ms.setStatus(job, StatusProcessing)
	job.Attempts++
	claimedAt := now
	job.LastAttemptAt = &claimedAt

	return job.Clone(), nil
}

// Update implements Storage
func (ms *MemoryStorage) Update(_ context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", ErrJobNotFound)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, exists := ms.jobs[job.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}

	updated := job.Clone()
	// Identity fields are immutable once stored.
	updated.BatchID = rec.job.BatchID
	updated.CreatedAt = rec.job.CreatedAt
	updated.Payload = rec.job.Payload
	updated.MaxAttempts = rec.job.MaxAttempts

	status := updated.Status
	updated.Status = rec.job.Status
	rec.job = updated
	ms.setStatus(rec.job, status)

	return nil
}

// Get implements Storage
func (ms *MemoryStorage) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, exists := ms.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return rec.job.Clone(), nil
}

// List implements Storage
func (ms *MemoryStorage) List(_ context.Context, filter Filter) ([]*Job, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := max(filter.Offset, 0)

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	recs := make([]*memoryRecord, 0, len(ms.jobs))
	if filter.Status != "" {
		for _, id := range ms.byStatus[filter.Status] {
			recs = append(recs, ms.jobs[id])
		}
	} else {
		for _, rec := range ms.jobs {
			recs = append(recs, rec)
		}
	}

	// Newest first
	slices.SortFunc(recs, func(a, b *memoryRecord) int {
		if a.before(b) {
			return 1
		}
		if b.before(a) {
			return -1
		}
		return 0
	})

	if offset >= len(recs) {
		return []*Job{}, nil
	}
	recs = recs[offset:min(offset+limit, len(recs))]

	out := make([]*Job, len(recs))
	for i, rec := range recs {
		out[i] = rec.job.Clone()
	}
	return out, nil
}

// Stats implements Storage
func (ms *MemoryStorage) Stats(_ context.Context) (Stats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var s Stats
	for status, ids := range ms.byStatus {
		s.Add(status, len(ids))
	}
	return s, nil
}

// DeletePending implements Storage
func (ms *MemoryStorage) DeletePending(_ context.Context) ([]uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ids := slices.Clone(ms.byStatus[StatusPending])
	for _, id := range ids {
		delete(ms.jobs, id)
	}
	delete(ms.byStatus, StatusPending)

	return ids, nil
}

// Recover implements Storage
func (ms *MemoryStorage) Recover(_ context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var n int
	for _, status := range []Status{StatusProcessing, StatusRetrying} {
		for _, id := range slices.Clone(ms.byStatus[status]) {
			job := ms.jobs[id].job
			if status == StatusProcessing {
				job.Attempts = max(job.Attempts-1, 0)
			}
			ms.setStatus(job, StatusPending)
			n++
		}
	}
	return n, nil
}

// PromoteDue implements Storage
func (ms *MemoryStorage) PromoteDue(_ context.Context, now time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var n int
	for _, id := range slices.Clone(ms.byStatus[StatusRetrying]) {
		job := ms.jobs[id].job
		if job.ScheduledFor != nil && job.ScheduledFor.After(now) {
			continue
		}
		ms.setStatus(job, StatusPending)
		n++
	}
	return n, nil
}

// Helper methods

// setStatus must be called with mu held.
func (ms *MemoryStorage) setStatus(job *Job, status Status) {
	if job.Status == status {
		return
	}
	ms.byStatus[job.Status] = slices.DeleteFunc(ms.byStatus[job.Status], func(id uuid.UUID) bool {
		return id == job.ID
	})
	job.Status = status
	ms.byStatus[status] = append(ms.byStatus[status], job.ID)
}

// before orders records by creation time, then by insertion order.
func (r *memoryRecord) before(other *memoryRecord) bool {
	if c := r.job.CreatedAt.Compare(other.job.CreatedAt); c != 0 {
		return c < 0
	}
	return cmp.Less(r.seq, other.seq)
}
