package webhook

import "errors"

// Delivery errors are wrapped with the underlying cause; check them with errors.Is.
var (
	ErrDeliveryFailed       = errors.New("webhook delivery failed")
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrPermanentFailure     = errors.New("permanent webhook failure")
	ErrTemporaryFailure     = errors.New("temporary webhook failure")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrInvalidURL           = errors.New("invalid webhook URL")
	ErrBlockedAddress       = errors.New("webhook target resolves to a non-public address")
	ErrTimeout              = errors.New("webhook request timeout")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)
