package queueapi

import "errors"

var (
	// ErrQueueNil is returned when the router is built without a queue.
	ErrQueueNil = errors.New("queue cannot be nil")
	// ErrServerRunning is returned when Run is called on a server that is already serving.
	ErrServerRunning = errors.New("admin server already running")
	// ErrStart indicates that the server failed to start.
	ErrStart = errors.New("failed to start admin server")
	// ErrShutdown indicates that graceful shutdown failed.
	ErrShutdown = errors.New("failed to shutdown admin server gracefully")
)
