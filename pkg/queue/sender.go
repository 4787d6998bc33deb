package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sender delivers one job payload and returns an opaque result.
// Any returned error counts as a failed attempt.
type Sender interface {
	Send(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

// NewSender builds a Sender from a typed function. The payload is decoded
// into T and the result is encoded as JSON.
func NewSender[T, R any](fn func(ctx context.Context, payload T) (R, error)) Sender {
	return SenderFunc(func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload as %T: %w", payload, err)
		}

		res, err := fn(ctx, payload)
		if err != nil {
			return nil, err
		}

		out, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result of type %T: %w", res, err)
		}
		return out, nil
	})
}

// marshalPayload converts a caller payload into the stored representation.
func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, ErrPayloadNil
	case json.RawMessage:
		if p == nil {
			return nil, ErrPayloadNil
		}
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: invalid raw JSON", ErrPayloadMarshal)
		}
		return append(json.RawMessage(nil), p...), nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %w", ErrPayloadMarshal, payload, err)
	}
	if string(b) == "null" {
		return nil, ErrPayloadNil
	}
	return b, nil
}
