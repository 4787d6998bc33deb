// Package webhook delivers JSON payloads to HTTP endpoints.
//
// Sender.Send marshals a value, POSTs it with Content-Type application/json
// and retries temporary failures (network errors, 5xx, 408, 425, 429) with a
// backoff.Strategy. Other 4xx responses fail immediately with
// ErrPermanentFailure.
//
// # SSRF guard
//
// Webhook URLs are usually user-supplied, so every target goes through Guard:
// the scheme must be http or https, the URL must not carry credentials, and
// every resolved address must be public (loopback, private, link-local,
// CGNAT, documentation and other reserved ranges are rejected). The default
// transport repeats the address check in the dialer, which closes the window
// between validation and connect, and does not follow redirects.
// WithAllowPrivateNetworks turns the guard off.
//
// # Signing
//
// WithSignature adds X-Webhook-Signature, X-Webhook-Timestamp and
// X-Webhook-ID headers. Receivers verify them with ParseSignature and
// VerifySignature:
//
//	sig, err := webhook.ParseSignature(r.Header)
//	if err != nil {
//		return err
//	}
//	err = webhook.VerifySignature(secret, body, sig, 5*time.Minute)
//
// # Usage
//
//	sender := webhook.NewSender()
//	err := sender.Send(ctx, "https://hooks.example.com/batches", event,
//		webhook.WithSignature(secret),
//		webhook.WithMaxRetries(2),
//	)
package webhook
