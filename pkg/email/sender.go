package email

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
	"github.com/dmitrymomot/mailqueue/pkg/ratelimiter"
)

// Sender delivers email messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
	// SendBatch reports per-message outcomes in BatchResult. The error is
	// reserved for failures of the whole call.
	SendBatch(ctx context.Context, msgs []Message) (*BatchResult, error)
	// ValidateConfig reports whether the sender can deliver at all.
	ValidateConfig() bool
}

// New builds the Sender selected by cfg.Driver.
func New(cfg Config) (Sender, error) {
	switch cfg.Driver {
	case DriverPostmark, "":
		return NewPostmarkSender(cfg)
	case DriverDev:
		return NewDevSender(cfg.DevOutputDir), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// QueueSender adapts s to a queue job sender taking Message payloads.
func QueueSender(s Sender) queue.Sender {
	return queue.NewSender(func(ctx context.Context, msg Message) (*SendResult, error) {
		return s.Send(ctx, msg)
	})
}

type rateLimited struct {
	next    Sender
	limiter ratelimiter.Limiter
}

// RateLimited makes every message sent through s wait for a limiter token.
// Use it for direct sends that bypass the queue but share its global limit.
func RateLimited(s Sender, limiter ratelimiter.Limiter) Sender {
	if limiter == nil {
		return s
	}
	return &rateLimited{next: s, limiter: limiter}
}

func (r *rateLimited) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return r.next.Send(ctx, msg)
}

func (r *rateLimited) SendBatch(ctx context.Context, msgs []Message) (*BatchResult, error) {
	for range msgs {
		if err := r.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	return r.next.SendBatch(ctx, msgs)
}

func (r *rateLimited) ValidateConfig() bool {
	return r.next.ValidateConfig()
}
