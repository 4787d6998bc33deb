package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/webhook"
)

// notifier delivers webhook events in order on a single goroutine so the
// dispatch loop never waits on the network.
type notifier struct {
	sender *webhook.Sender
	url    string
	opts   []webhook.SendOption
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newNotifier(sender *webhook.Sender, url string, cfg Config, log *slog.Logger) *notifier {
	opts := []webhook.SendOption{
		webhook.WithTimeout(cfg.WebhookTimeout),
		webhook.WithMaxRetries(cfg.WebhookRetries),
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, webhook.WithSignature(cfg.WebhookSecret))
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &notifier{
		sender: sender,
		url:    url,
		opts:   opts,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) enqueue(ev Event) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.logger.Warn("batch notifier closed, dropping event", logger.EventType(ev.Type))
		return
	}
	n.queue = append(n.queue, ev)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		if n.ctx.Err() != nil {
			return
		}
		n.mu.Lock()
		if len(n.queue) == 0 {
			closed := n.closed
			n.mu.Unlock()
			if closed {
				return
			}
			<-n.wake
			continue
		}
		ev := n.queue[0]
		n.queue[0] = Event{}
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.deliver(ev)
	}
}

func (n *notifier) deliver(ev Event) {
	opts := append([]webhook.SendOption{webhook.WithHeader("X-Event-Type", ev.Type)}, n.opts...)
	if err := n.sender.Send(n.ctx, n.url, ev, opts...); err != nil {
		n.logger.Error("batch webhook delivery failed",
			logger.EventType(ev.Type),
			logger.Error(err))
		return
	}
	n.logger.Debug("batch webhook delivered", logger.EventType(ev.Type))
}

// close stops accepting events and waits for queued ones to be delivered.
// When ctx expires first, in-flight and queued deliveries are abandoned.
func (n *notifier) close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}

	select {
	case <-n.done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-n.done
		return ctx.Err()
	}
}
