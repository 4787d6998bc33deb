package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/email/templates"
)

var errEmptyBatch = errors.New("batch file has no messages")

// batchFile is the on-disk batch format. Shared fields fill in any message
// that leaves them empty. With html_layout set, text-only messages also get
// an HTML body rendered from their text.
//
//	from: news@example.com
//	tag: weekly
//	html_layout: true
//	messages:
//	  - to: a@example.com
//	    subject: Hello
//	    text_body: Hi there
type batchFile struct {
	From       string          `json:"from,omitempty" yaml:"from,omitempty"`
	ReplyTo    string          `json:"reply_to,omitempty" yaml:"reply_to,omitempty"`
	Tag        string          `json:"tag,omitempty" yaml:"tag,omitempty"`
	HTMLLayout bool            `json:"html_layout,omitempty" yaml:"html_layout,omitempty"`
	Messages   []email.Message `json:"messages" yaml:"messages"`
}

// loadBatchFile reads a .json, .yaml or .yml batch and validates every
// message. Errors name the offending message index.
func loadBatchFile(ctx context.Context, path string) ([]email.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var bf batchFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&bf)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&bf)
	default:
		return nil, fmt.Errorf("unsupported batch file extension %q: use .json, .yaml or .yml", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode batch file %s: %w", path, err)
	}
	if len(bf.Messages) == 0 {
		return nil, errEmptyBatch
	}

	var errs []error
	for i := range bf.Messages {
		msg := &bf.Messages[i]
		if msg.From == "" {
			msg.From = bf.From
		}
		if msg.ReplyTo == "" {
			msg.ReplyTo = bf.ReplyTo
		}
		if msg.Tag == "" {
			msg.Tag = bf.Tag
		}
		if !bf.HTMLLayout {
			if err := msg.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("message %d: %w", i, err))
			}
			continue
		}
		rendered, err := templates.WithHTMLFromText(ctx, *msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", i, err))
			continue
		}
		*msg = rendered
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return bf.Messages, nil
}

func payloads(msgs []email.Message) []any {
	out := make([]any, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	return out
}
