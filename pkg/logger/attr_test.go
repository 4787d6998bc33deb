package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestIdentifiers(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
	}{
		{name: "job id", attr: logger.JobID(id), key: "job_id"},
		{name: "batch id", attr: logger.BatchID(id), key: "batch_id"},
		{name: "message id", attr: logger.MessageID(id), key: "message_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, id, tt.attr.Value.Any())
		})
	}

	assert.True(t, logger.JobID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.BatchID(nil).Equal(slog.Attr{}))
}

func TestAttempt(t *testing.T) {
	attr := logger.Attempt(2, 3)
	require.Equal(t, "attempt", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, int64(2), g[0].Value.Int64())
	assert.Equal(t, int64(3), g[1].Value.Int64())
}

func TestDurations(t *testing.T) {
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
	assert.Equal(t, "delay", logger.Delay(time.Minute).Key)
	assert.Equal(t, time.Minute, logger.Delay(time.Minute).Value.Duration())
}
