// Package logging provides structured logging configuration using log/slog.
//
// Every reconciliation batch carries a batch ID in its context; loggers
// obtained through FromContext attach it automatically so all records of
// one import can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const ctxKeyBatchID contextKey = "batch_id"

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContextWithBatchID tags ctx with a reconciliation batch ID.
func ContextWithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyBatchID, id)
}

// BatchIDFromContext returns the batch ID stored in ctx, or "".
func BatchIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyBatchID).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the default logger, enriched with batch_id when ctx
// belongs to a reconciliation batch.
//
// Usage:
//
//	logger := logging.FromContext(ctx)
//	logger.Warn("no race gender specified", "registration_id", id)
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if id := BatchIDFromContext(ctx); id != "" {
		logger = logger.With("batch_id", id)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
