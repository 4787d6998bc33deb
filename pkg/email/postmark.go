package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/mailqueue/pkg/validator"
)

// postmarkBatchLimit is the maximum number of messages per batch API call.
const postmarkBatchLimit = 500

// PostmarkSender delivers messages through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	config Config
}

// PostmarkOption configures a PostmarkSender.
type PostmarkOption func(*PostmarkSender)

// WithPostmarkBaseURL points the client at a different API endpoint.
func WithPostmarkBaseURL(url string) PostmarkOption {
	return func(s *PostmarkSender) {
		if url != "" {
			s.client.BaseURL = url
		}
	}
}

// NewPostmarkSender creates a Postmark-backed sender.
// Both tokens and both addresses are required.
func NewPostmarkSender(cfg Config, opts ...PostmarkOption) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if err := validator.Apply(
		validator.Email("SenderEmail", cfg.SenderEmail),
		validator.Email("SupportEmail", cfg.SupportEmail),
	); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	s := &PostmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateConfig reports whether the sender has credentials and a sender identity.
func (s *PostmarkSender) ValidateConfig() bool {
	return s.config.PostmarkServerToken != "" &&
		s.config.PostmarkAccountToken != "" &&
		validator.Apply(validator.Email("SenderEmail", s.config.SenderEmail)) == nil
}

// Send delivers one message. Opens and HTML link clicks are tracked; Reply-To
// defaults to the support address.
func (s *PostmarkSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.client.SendEmail(ctx, s.toPostmark(msg))
	if err != nil {
		return nil, errors.Join(ErrFailedToSendEmail, err)
	}
	return postmarkResult(resp)
}

// SendBatch validates every message, sends the valid ones through the batch
// endpoint in chunks and reports each message's outcome.
func (s *PostmarkSender) SendBatch(ctx context.Context, msgs []Message) (*BatchResult, error) {
	result := newBatchResult(len(msgs))

	var (
		valid   []postmark.Email
		indexes []int
	)
	invalid := make(map[int]error)
	for i, msg := range msgs {
		if err := msg.Validate(); err != nil {
			invalid[i] = err
			continue
		}
		valid = append(valid, s.toPostmark(msg))
		indexes = append(indexes, i)
	}

	outcomes := make(map[int]*SendResult, len(valid))
	failures := make(map[int]error)
	for start := 0; start < len(valid); start += postmarkBatchLimit {
		end := min(start+postmarkBatchLimit, len(valid))
		responses, err := s.client.SendEmailBatch(ctx, valid[start:end])
		if err != nil {
			return nil, errors.Join(ErrFailedToSendEmail, err)
		}
		for j := start; j < end; j++ {
			if j-start >= len(responses) {
				failures[indexes[j]] = fmt.Errorf("%w: missing batch response", ErrFailedToSendEmail)
				continue
			}
			res, err := postmarkResult(responses[j-start])
			if err != nil {
				failures[indexes[j]] = err
				continue
			}
			outcomes[indexes[j]] = res
		}
	}

	for i, msg := range msgs {
		switch {
		case invalid[i] != nil:
			result.add(i, msg, nil, invalid[i])
		case failures[i] != nil:
			result.add(i, msg, nil, failures[i])
		default:
			result.add(i, msg, outcomes[i], nil)
		}
	}
	return result, nil
}

func (s *PostmarkSender) toPostmark(msg Message) postmark.Email {
	from := msg.From
	if from == "" {
		from = s.config.SenderEmail
	}
	replyTo := msg.ReplyTo
	if replyTo == "" {
		replyTo = s.config.SupportEmail
	}
	return postmark.Email{
		From:       from,
		ReplyTo:    replyTo,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTMLBody,
		TextBody:   msg.TextBody,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	}
}

func postmarkResult(resp postmark.EmailResponse) (*SendResult, error) {
	if resp.ErrorCode > 0 {
		return nil, errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	sentAt := resp.SubmittedAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	return &SendResult{ID: resp.MessageID, SentAt: sentAt}, nil
}
