package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

func TestDevSender_Send(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	sender := email.NewDevSender(dir)
	require.True(t, sender.ValidateConfig())

	msg := validMessage()
	msg.Tag = "Welcome Series!"
	msg.Metadata = map[string]string{"campaign": "spring"}

	res, err := sender.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.SentAt.IsZero())

	htmlFiles, err := filepath.Glob(filepath.Join(dir, "*.html"))
	require.NoError(t, err)
	require.Len(t, htmlFiles, 1)
	assert.True(t, strings.HasSuffix(htmlFiles[0], "_welcome_series.html"), htmlFiles[0])

	body, err := os.ReadFile(htmlFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello</p>", string(body))

	raw, err := os.ReadFile(strings.TrimSuffix(htmlFiles[0], ".html") + ".json")
	require.NoError(t, err)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, res.ID, envelope["id"])
	assert.Equal(t, "ada@example.com", envelope["to"])
	assert.Equal(t, "Welcome", envelope["subject"])
	assert.Equal(t, map[string]any{"campaign": "spring"}, envelope["metadata"])
}

func TestDevSender_TextOnlyIsEscaped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	msg := email.Message{To: "ada@example.com", Subject: "Plain", TextBody: "1 < 2 & <b>"}

	_, err := email.NewDevSender(dir).Send(context.Background(), msg)
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	body, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "<pre>1 &lt; 2 &amp; &lt;b&gt;</pre>", string(body))
}

func TestDevSender_SendBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	bad := validMessage()
	bad.To = "not-an-address"
	msgs := []email.Message{validMessage(), bad, validMessage()}

	res, err := sender.SendBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	assert.NotNil(t, res.Results[0].Result)
	assert.Nil(t, res.Results[1].Result)
	assert.Contains(t, res.Results[1].Error, "must be a valid email address")
	assert.Equal(t, 1, res.Results[1].Index)

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestDevSender_SendBatchHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := email.NewDevSender(t.TempDir()).SendBatch(ctx, []email.Message{validMessage()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDevSender_InvalidMessage(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "never")
	_, err := email.NewDevSender(dir).Send(context.Background(), email.Message{})
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
	assert.NoDirExists(t, dir)
	assert.False(t, email.NewDevSender("").ValidateConfig())
}
