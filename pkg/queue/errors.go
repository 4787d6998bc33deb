package queue

import "errors"

// Common errors
var (
	// ErrStorageNil is returned when a nil storage is provided
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrSenderNil is returned when a nil sender is provided
	ErrSenderNil = errors.New("sender cannot be nil")

	// ErrPayloadNil is returned when attempting to add a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrPayloadMarshal is returned when payload marshaling fails
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrNoItemsToEnqueue is returned when a batch add is called with no payloads
	ErrNoItemsToEnqueue = errors.New("no items to enqueue")

	// ErrJobCreate is returned when job insertion in storage fails
	ErrJobCreate = errors.New("failed to create job in storage")

	// ErrJobNotFound is returned when a job does not exist in storage
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when inserting a job with a duplicate ID
	ErrJobExists = errors.New("job already exists")

	// ErrNoJobToClaim is returned by storage when no job is eligible for dispatch
	ErrNoJobToClaim = errors.New("no job available to claim")

	// ErrInvalidFilter is returned when a listing filter carries an unknown status
	ErrInvalidFilter = errors.New("invalid job filter")

	// ErrEngineRunning is returned when starting an engine that is already running
	ErrEngineRunning = errors.New("engine already started")

	// ErrEngineNotRunning is returned when stopping an engine that was not started
	ErrEngineNotRunning = errors.New("engine not started")

	// ErrEngineDraining is returned when starting an engine whose previous run
	// still has in-flight sends after a timed-out Stop
	ErrEngineDraining = errors.New("engine still draining in-flight jobs from previous run")

	// ErrShutdownTimeout is returned when in-flight sends outlive the shutdown window
	ErrShutdownTimeout = errors.New("shutdown timed out waiting for in-flight jobs")

	// ErrStorageClosed is returned by storage operations after Close
	ErrStorageClosed = errors.New("storage is closed")
)
