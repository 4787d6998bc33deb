package templates

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

// Render renders a templ component to a string.
func Render(ctx context.Context, tpl templ.Component) (string, error) {
	var sb strings.Builder
	if err := tpl.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderMessage renders html into msg.HTMLBody and, when text is not nil,
// text into msg.TextBody. The returned message is validated.
func RenderMessage(ctx context.Context, msg email.Message, html, text templ.Component) (email.Message, error) {
	if html != nil {
		body, err := Render(ctx, html)
		if err != nil {
			return email.Message{}, err
		}
		msg.HTMLBody = body
	}
	if text != nil {
		body, err := Render(ctx, text)
		if err != nil {
			return email.Message{}, err
		}
		msg.TextBody = body
	}
	if err := msg.Validate(); err != nil {
		return email.Message{}, err
	}
	return msg, nil
}
