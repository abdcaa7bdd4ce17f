// Package logging initializes the process-wide structured logger and
// provides the error reporting sink used by background components.
package logging

import (
	"log/slog"
	"os"
)

// Logger is the application-wide structured logger instance.
var Logger *slog.Logger

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// WithSession returns a logger with session_key field.
func WithSession(sessionKey string) *slog.Logger {
	return slog.With("session_key", sessionKey)
}

// WithWorker returns a logger with worker_id field.
func WithWorker(workerID string) *slog.Logger {
	return slog.With("worker_id", workerID)
}

// WithError returns a logger with error field.
func WithError(err error) *slog.Logger {
	return slog.With("error", err)
}
