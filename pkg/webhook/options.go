package webhook

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/backoff"
)

// DeliveryResult describes one HTTP attempt.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Error      error
}

// DeliveryHook is called after each delivery attempt.
type DeliveryHook func(result DeliveryResult)

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithAllowPrivateNetworks disables the SSRF guard. Intended for tests and
// deployments that post to endpoints inside the same network.
func WithAllowPrivateNetworks() SenderOption {
	return func(s *Sender) {
		s.guard.AllowPrivate = true
	}
}

// WithResolver replaces the DNS resolver used for pre-request validation.
func WithResolver(r Resolver) SenderOption {
	return func(s *Sender) {
		s.guard.Resolver = r
	}
}

// WithHTTPClient replaces the HTTP client. The dial-time address check is part
// of the default transport, so a custom client only gets the pre-request check.
func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

type sendOptions struct {
	timeout    time.Duration
	headers    map[string]string
	maxRetries int
	backoff    backoff.Strategy
	secret     string
	onDelivery DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:    10 * time.Second,
		headers:    make(map[string]string),
		maxRetries: 3,
		backoff:    backoff.NewExponential(time.Second, 30*time.Second, backoff.WithJitterFactor(0.1)),
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithTimeout sets the per-attempt request timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a custom request header.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
// Default is 3; zero disables retries.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(strategy backoff.Strategy) SendOption {
	return func(o *sendOptions) {
		if strategy != nil {
			o.backoff = strategy
		}
	}
}

// WithSignature signs the body with HMAC-SHA256 using secret.
// An empty secret leaves the request unsigned.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.secret = secret
	}
}

// WithOnDelivery registers a hook invoked after every attempt.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}

// WithNoRetry disables retries.
func WithNoRetry() SendOption {
	return func(o *sendOptions) {
		o.maxRetries = 0
	}
}
