package email_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/validator"
)

func validMessage() email.Message {
	return email.Message{
		To:       "ada@example.com",
		Subject:  "Welcome",
		HTMLBody: "<p>Hello</p>",
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(*email.Message)
		wantFields []string
	}{
		{name: "valid html", mutate: func(*email.Message) {}},
		{name: "valid text only", mutate: func(m *email.Message) { m.HTMLBody = ""; m.TextBody = "Hello" }},
		{name: "valid display name", mutate: func(m *email.Message) { m.To = "Ada <ada@example.com>" }},
		{name: "missing recipient", mutate: func(m *email.Message) { m.To = "" }, wantFields: []string{"to"}},
		{name: "bad recipient", mutate: func(m *email.Message) { m.To = "ada" }, wantFields: []string{"to"}},
		{name: "bad from", mutate: func(m *email.Message) { m.From = "noreply" }, wantFields: []string{"from"}},
		{name: "bad reply-to", mutate: func(m *email.Message) { m.ReplyTo = "support@" }, wantFields: []string{"reply_to"}},
		{name: "missing subject", mutate: func(m *email.Message) { m.Subject = " " }, wantFields: []string{"subject"}},
		{name: "long subject", mutate: func(m *email.Message) { m.Subject = strings.Repeat("s", 999) }, wantFields: []string{"subject"}},
		{name: "missing body", mutate: func(m *email.Message) { m.HTMLBody = "" }, wantFields: []string{"body"}},
		{
			name:       "everything wrong",
			mutate:     func(m *email.Message) { *m = email.Message{} },
			wantFields: []string{"to", "subject", "body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := validMessage()
			tt.mutate(&msg)
			err := msg.Validate()

			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, email.ErrInvalidMessage))
			assert.ErrorIs(t, err, validator.ErrValidationFailed)
			assert.Equal(t, tt.wantFields, validator.ExtractValidationErrors(err).Fields())
		})
	}
}
