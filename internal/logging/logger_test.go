package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithHelpersAttachFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	WithSession("user:abc").Info("session event")
	WithWorker("worker-1").Info("worker event")
	WithError(errors.New("boom")).Info("failure event")

	out := buf.String()
	assert.Contains(t, out, `"session_key":"user:abc"`)
	assert.Contains(t, out, `"worker_id":"worker-1"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestInitLoggerLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	InitLogger("warn", "json")
	assert.False(t, Logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, Logger.Enabled(context.Background(), slog.LevelWarn))

	InitLogger("bogus", "text")
	assert.True(t, Logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, Logger.Enabled(context.Background(), slog.LevelDebug))
}
