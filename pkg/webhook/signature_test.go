package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/webhook"
)

func sign(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", ts, payload)
	return hex.EncodeToString(h.Sum(nil))
}

func TestSignPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		payload []byte
		wantErr error
	}{
		{name: "valid", secret: "whsec_123", payload: []byte(`{"type":"batch.completed"}`)},
		{name: "empty secret", secret: "", payload: []byte(`{}`), wantErr: webhook.ErrInvalidConfiguration},
		{name: "empty payload", secret: "s", payload: []byte{}, wantErr: webhook.ErrInvalidPayload},
		{name: "nil payload", secret: "s", payload: nil, wantErr: webhook.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sig, err := webhook.SignPayload(tt.secret, tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, sign(tt.secret, sig.Timestamp, tt.payload), sig.Value)
			assert.NotEmpty(t, sig.ID)
			assert.Less(t, time.Since(time.Unix(sig.Timestamp, 0)), 2*time.Second)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	secret := "whsec_123"
	payload := []byte(`{"type":"batch.progress"}`)
	now := time.Now().Unix()

	tests := []struct {
		name    string
		secret  string
		payload []byte
		sig     webhook.Signature
		maxAge  time.Duration
		wantErr error
	}{
		{
			name:    "valid",
			secret:  secret,
			payload: payload,
			sig:     webhook.Signature{Value: sign(secret, now, payload), Timestamp: now},
			maxAge:  5 * time.Minute,
		},
		{
			name:    "wrong secret",
			secret:  "other",
			payload: payload,
			sig:     webhook.Signature{Value: sign(secret, now, payload), Timestamp: now},
			wantErr: webhook.ErrInvalidSignature,
		},
		{
			name:    "tampered payload",
			secret:  secret,
			payload: []byte(`{"type":"batch.completed"}`),
			sig:     webhook.Signature{Value: sign(secret, now, payload), Timestamp: now},
			wantErr: webhook.ErrInvalidSignature,
		},
		{
			name:    "expired",
			secret:  secret,
			payload: payload,
			sig:     webhook.Signature{Value: sign(secret, now-600, payload), Timestamp: now - 600},
			maxAge:  5 * time.Minute,
			wantErr: webhook.ErrInvalidSignature,
		},
		{
			name:    "old timestamp accepted without max age",
			secret:  secret,
			payload: payload,
			sig:     webhook.Signature{Value: sign(secret, now-600, payload), Timestamp: now - 600},
		},
		{
			name:    "future timestamp",
			secret:  secret,
			payload: payload,
			sig:     webhook.Signature{Value: sign(secret, now+300, payload), Timestamp: now + 300},
			maxAge:  5 * time.Minute,
			wantErr: webhook.ErrInvalidSignature,
		},
		{
			name:    "missing signature",
			secret:  secret,
			payload: payload,
			sig:     webhook.Signature{Timestamp: now},
			wantErr: webhook.ErrInvalidSignature,
		},
		{
			name:    "empty secret",
			payload: payload,
			sig:     webhook.Signature{Value: "x", Timestamp: now},
			wantErr: webhook.ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := webhook.VerifySignature(tt.secret, tt.payload, tt.sig, tt.maxAge)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseSignature(t *testing.T) {
	t.Parallel()

	t.Run("round trip through headers", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{"a":1}`)
		sig, err := webhook.SignPayload("s", payload)
		require.NoError(t, err)

		h := http.Header{}
		sig.Apply(h)

		parsed, err := webhook.ParseSignature(h)
		require.NoError(t, err)
		assert.Equal(t, sig, parsed)
		assert.NoError(t, webhook.VerifySignature("s", payload, parsed, time.Minute))
	})

	t.Run("header names are case-insensitive", func(t *testing.T) {
		t.Parallel()

		h := http.Header{}
		h.Set("x-webhook-signature", "abc")
		h.Set("x-webhook-timestamp", "1700000000")

		sig, err := webhook.ParseSignature(h)
		require.NoError(t, err)
		assert.Equal(t, "abc", sig.Value)
		assert.Equal(t, int64(1700000000), sig.Timestamp)
	})

	t.Run("missing headers", func(t *testing.T) {
		t.Parallel()

		_, err := webhook.ParseSignature(http.Header{})
		assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		t.Parallel()

		h := http.Header{}
		h.Set(webhook.HeaderSignature, "abc")
		h.Set(webhook.HeaderTimestamp, "yesterday")

		_, err := webhook.ParseSignature(h)
		assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
	})
}
