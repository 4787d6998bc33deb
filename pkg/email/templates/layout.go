package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

// TextLayout renders a plain-text body as a minimal HTML document: the subject
// becomes the title and blank-line separated blocks become paragraphs.
func TextLayout(subject, text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(subject))
		b.WriteString(`</title></head><body>`)
		for _, block := range paragraphs(text) {
			b.WriteString("<p>")
			b.WriteString(strings.ReplaceAll(templ.EscapeString(block), "\n", "<br>"))
			b.WriteString("</p>")
		}
		b.WriteString(`</body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// WithHTMLFromText fills an empty HTMLBody by rendering TextBody through
// TextLayout. Messages that already have HTML, or have no text, are only
// validated.
func WithHTMLFromText(ctx context.Context, msg email.Message) (email.Message, error) {
	if msg.HTMLBody != "" || strings.TrimSpace(msg.TextBody) == "" {
		if err := msg.Validate(); err != nil {
			return email.Message{}, err
		}
		return msg, nil
	}
	return RenderMessage(ctx, msg, TextLayout(msg.Subject, msg.TextBody), nil)
}

func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}
