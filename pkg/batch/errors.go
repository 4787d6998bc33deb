package batch

import "errors"

var (
	ErrInvalidWebhook = errors.New("invalid batch webhook")
	ErrSenderNil      = errors.New("sender cannot be nil")
	ErrNoBatch        = errors.New("no batch added")
	ErrBatchExists    = errors.New("ephemeral batch already has a batch")
	ErrWaitTimeout    = errors.New("timed out waiting for batch completion")
	ErrDestroyed      = errors.New("ephemeral batch destroyed")
)
