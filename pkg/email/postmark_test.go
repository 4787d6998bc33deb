package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

func postmarkConfig() email.Config {
	return email.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "noreply@example.com",
		SupportEmail:         "support@example.com",
	}
}

func TestNewPostmarkSender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*email.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*email.Config) {}},
		{name: "no server token", mutate: func(c *email.Config) { c.PostmarkServerToken = "" }, wantErr: "PostmarkServerToken is required"},
		{name: "no account token", mutate: func(c *email.Config) { c.PostmarkAccountToken = "" }, wantErr: "PostmarkAccountToken is required"},
		{name: "no sender", mutate: func(c *email.Config) { c.SenderEmail = "" }, wantErr: "SenderEmail"},
		{name: "bad sender", mutate: func(c *email.Config) { c.SenderEmail = "noreply" }, wantErr: "SenderEmail"},
		{name: "bad support", mutate: func(c *email.Config) { c.SupportEmail = "support@" }, wantErr: "SupportEmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := postmarkConfig()
			tt.mutate(&cfg)
			sender, err := email.NewPostmarkSender(cfg)
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, email.ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, sender)
				return
			}
			require.NoError(t, err)
			assert.True(t, sender.ValidateConfig())
		})
	}
}

func TestNew_Driver(t *testing.T) {
	t.Parallel()

	cfg := postmarkConfig()
	s, err := email.New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &email.PostmarkSender{}, s)

	cfg.Driver = email.DriverDev
	cfg.DevOutputDir = t.TempDir()
	s, err = email.New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)

	cfg.Driver = "smtp"
	_, err = email.New(cfg)
	assert.ErrorIs(t, err, email.ErrUnknownDriver)
}

func newPostmarkServer(t *testing.T, handler http.HandlerFunc) *email.PostmarkSender {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sender, err := email.NewPostmarkSender(postmarkConfig(), email.WithPostmarkBaseURL(server.URL))
	require.NoError(t, err)
	return sender
}

func TestPostmarkSender_Send(t *testing.T) {
	t.Parallel()

	var got map[string]any
	sender := newPostmarkServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email", r.URL.Path)
		assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"ada@example.com","SubmittedAt":"2025-01-02T03:04:05Z","MessageID":"msg-1","ErrorCode":0,"Message":"OK"}`))
	})

	res, err := sender.Send(context.Background(), validMessage())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", res.ID)
	assert.Equal(t, 2025, res.SentAt.Year())

	assert.Equal(t, "noreply@example.com", got["From"])
	assert.Equal(t, "support@example.com", got["ReplyTo"])
	assert.Equal(t, "ada@example.com", got["To"])
	assert.Equal(t, "Welcome", got["Subject"])
}

func TestPostmarkSender_SendRejected(t *testing.T) {
	t.Parallel()

	sender := newPostmarkServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
	})

	_, err := sender.Send(context.Background(), validMessage())
	assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
}

func TestPostmarkSender_SendInvalidMessageSkipsAPI(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	sender := newPostmarkServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := sender.Send(context.Background(), email.Message{To: "ada"})
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
	assert.Zero(t, calls.Load())
}

func TestPostmarkSender_SendBatch(t *testing.T) {
	t.Parallel()

	var batchSize int
	sender := newPostmarkServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email/batch", r.URL.Path)

		var emails []map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&emails))
		batchSize = len(emails)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"To":"a@example.com","MessageID":"m-a","ErrorCode":0,"Message":"OK"},
			{"To":"c@example.com","ErrorCode":300,"Message":"Invalid email request"}
		]`))
	})

	msgs := []email.Message{validMessage(), validMessage(), validMessage()}
	msgs[0].To = "a@example.com"
	msgs[1].To = "broken"
	msgs[2].To = "c@example.com"

	res, err := sender.SendBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, batchSize)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 2, res.Failed)

	require.Len(t, res.Results, 3)
	assert.Equal(t, "m-a", res.Results[0].Result.ID)
	assert.Contains(t, res.Results[1].Error, "valid email")
	assert.Contains(t, res.Results[2].Error, "Invalid email request")
}
