package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// UserAgent is sent with every webhook request.
const UserAgent = "mailqueue-webhook/1.0"

// maxErrorBody bounds how much of a failed response is read into the error.
const maxErrorBody = 64 * 1024

// Sender posts JSON payloads to webhook endpoints with retries.
// Zero value is not usable; use NewSender to create instances.
type Sender struct {
	client *http.Client
	guard  Guard
}

// NewSender creates a webhook sender. Unless WithAllowPrivateNetworks is set,
// targets are checked against SSRF both before the request and at dial time.
func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		dialer := &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		if !s.guard.AllowPrivate {
			dialer.Control = dialControl
		}
		s.client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			// Redirects could point at internal hosts; the endpoint must answer directly.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return s
}

// Send marshals data to JSON and POSTs it to webhookURL, retrying temporary
// failures according to the configured backoff.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	if _, err := s.guard.ValidateURL(ctx, webhookURL); err != nil {
		return err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	var lastErr error
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(options.backoff.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		result, err := s.deliver(ctx, webhookURL, payload, options)
		if options.onDelivery != nil {
			result.Attempt = attempt + 1
			options.onDelivery(result)
		}
		if err == nil {
			return nil
		}

		lastErr = err
		if isPermanent(result.StatusCode, err) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, options.maxRetries+1, lastErr)
}

func (s *Sender) deliver(ctx context.Context, webhookURL string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	result := DeliveryResult{}

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		result.Duration = time.Since(start)
		result.Error = err
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if options.secret != "" {
		sig, err := SignPayload(options.secret, payload)
		if err != nil {
			result.Duration = time.Since(start)
			result.Error = err
			return result, err
		}
		sig.Apply(req.Header)
	}

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		switch {
		case errors.Is(err, ErrBlockedAddress):
			return result, err
		case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		default:
			return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
		}
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if result.Success {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return result, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
	if len(body) > 0 {
		// Single line, truncated: the body ends up in logs.
		text := strings.ReplaceAll(string(body), "\n", " ")
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		msg += ": " + text
	}
	result.Error = errors.New(msg)
	return result, result.Error
}

// isPermanent reports whether retrying cannot help.
// 408, 425 and 429 are client errors that may clear up on their own.
func isPermanent(statusCode int, err error) bool {
	if errors.Is(err, ErrBlockedAddress) {
		return true
	}
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}
