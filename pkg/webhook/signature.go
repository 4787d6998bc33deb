package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Signature header names.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// maxFutureSkew is how far ahead of the receiver's clock a timestamp may be.
const maxFutureSkew = time.Minute

// Signature is the set of values a signed webhook carries in its headers.
type Signature struct {
	Value     string
	Timestamp int64
	ID        string
}

// Apply writes the signature headers to h.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderID, s.ID)
}

// SignPayload signs payload with the current time and a fresh delivery ID.
// The signed message is "<unix timestamp>.<payload>", hex-encoded HMAC-SHA256.
func SignPayload(secret string, payload []byte) (Signature, error) {
	if secret == "" {
		return Signature{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return Signature{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	ts := time.Now().Unix()
	return Signature{
		Value:     compute(secret, ts, payload),
		Timestamp: ts,
		ID:        uuid.NewString(),
	}, nil
}

// VerifySignature checks sig against payload in constant time. With maxAge > 0,
// signatures older than maxAge or more than a minute in the future are rejected.
func VerifySignature(secret string, payload []byte, sig Signature, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	if sig.Value == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidSignature)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(sig.Timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: timestamp too old: %v", ErrInvalidSignature, age)
		}
		if age < -maxFutureSkew {
			return fmt.Errorf("%w: timestamp is in the future", ErrInvalidSignature)
		}
	}

	expected := compute(secret, sig.Timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(sig.Value)) {
		return fmt.Errorf("%w: mismatch", ErrInvalidSignature)
	}
	return nil
}

// ParseSignature reads the signature headers of an incoming request.
func ParseSignature(h http.Header) (Signature, error) {
	sig := Signature{
		Value: h.Get(HeaderSignature),
		ID:    h.Get(HeaderID),
	}
	raw := h.Get(HeaderTimestamp)
	if sig.Value == "" || raw == "" {
		return Signature{}, fmt.Errorf("%w: missing signature headers", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: invalid timestamp format", ErrInvalidSignature)
	}
	sig.Timestamp = ts
	return sig, nil
}

func compute(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte{'.'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
