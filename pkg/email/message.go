package email

import (
	"errors"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/validator"
)

// maxSubjectLen is the RFC 5322 line limit.
const maxSubjectLen = 998

// Message is one outgoing email. It is also the job payload of the mail queue.
type Message struct {
	To       string            `json:"to" yaml:"to"`
	From     string            `json:"from,omitempty" yaml:"from,omitempty"`
	ReplyTo  string            `json:"reply_to,omitempty" yaml:"reply_to,omitempty"`
	Subject  string            `json:"subject" yaml:"subject"`
	HTMLBody string            `json:"html_body,omitempty" yaml:"html_body,omitempty"`
	TextBody string            `json:"text_body,omitempty" yaml:"text_body,omitempty"`
	Tag      string            `json:"tag,omitempty" yaml:"tag,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks recipients, subject and body. The returned error wraps both
// ErrInvalidMessage and validator.ValidationErrors.
func (m Message) Validate() error {
	err := validator.Apply(
		validator.Required("to", m.To),
		validator.Email("to", m.To),
		validator.OptionalEmail("from", m.From),
		validator.OptionalEmail("reply_to", m.ReplyTo),
		validator.Required("subject", m.Subject),
		validator.MaxLen("subject", m.Subject, maxSubjectLen),
		validator.RequiredOneOf("body", m.HTMLBody, m.TextBody),
	)
	if err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	return nil
}

// SendResult identifies an accepted message.
type SendResult struct {
	ID     string    `json:"id"`
	SentAt time.Time `json:"sent_at"`
}

// ItemResult is the outcome of one message of a batch.
type ItemResult struct {
	Index  int         `json:"index"`
	To     string      `json:"to"`
	Result *SendResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// BatchResult aggregates a SendBatch call.
type BatchResult struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []ItemResult `json:"results"`
}

func (r *BatchResult) add(i int, m Message, res *SendResult, err error) {
	item := ItemResult{Index: i, To: m.To, Result: res}
	if err != nil {
		item.Error = err.Error()
		r.Failed++
	} else {
		r.Successful++
	}
	r.Results = append(r.Results, item)
}

func newBatchResult(n int) *BatchResult {
	return &BatchResult{Total: n, Results: make([]ItemResult, 0, n)}
}
