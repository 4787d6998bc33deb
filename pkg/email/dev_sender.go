package email

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender writes messages to disk instead of sending them: one .html file
// with the body and one .json file with the envelope per message.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender creates a development sender writing to dir.
// The directory is created on first send.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devEnvelope struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	To        string            `json:"to"`
	From      string            `json:"from,omitempty"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	Subject   string            `json:"subject"`
	Tag       string            `json:"tag,omitempty"`
	TextBody  string            `json:"text_body,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ValidateConfig reports whether an output directory is set.
func (d *DevSender) ValidateConfig() bool {
	return d.dir != ""
}

// Send writes msg to the output directory.
func (d *DevSender) Send(_ context.Context, msg Message) (*SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrFailedToSendEmail, err)
	}

	now := d.now()
	id := uuid.NewString()

	identifier := msg.Tag
	if identifier == "" {
		identifier = msg.Subject
	}
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), id[:8], sanitizeFilename(identifier))

	body := msg.HTMLBody
	if body == "" {
		body = "<pre>" + html.EscapeString(msg.TextBody) + "</pre>"
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(body), 0o644); err != nil {
		return nil, fmt.Errorf("%w: write html: %w", ErrFailedToSendEmail, err)
	}

	envelope, err := json.MarshalIndent(devEnvelope{
		ID:        id,
		Timestamp: now.Format(time.RFC3339),
		To:        msg.To,
		From:      msg.From,
		ReplyTo:   msg.ReplyTo,
		Subject:   msg.Subject,
		Tag:       msg.Tag,
		TextBody:  msg.TextBody,
		Metadata:  msg.Metadata,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal envelope: %w", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), envelope, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write json: %w", ErrFailedToSendEmail, err)
	}

	return &SendResult{ID: id, SentAt: now}, nil
}

// SendBatch writes every message and reports per-message outcomes.
func (d *DevSender) SendBatch(ctx context.Context, msgs []Message) (*BatchResult, error) {
	result := newBatchResult(len(msgs))
	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := d.Send(ctx, msg)
		result.add(i, msg, res, err)
	}
	return result, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename lowercases s, turns spaces into underscores, drops anything
// else outside [a-z0-9-_.] and caps the length at 100.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "email"
	}
	return strings.ToLower(s)
}
