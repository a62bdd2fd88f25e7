// Package logger configures the process-wide slog logger and provides
// helpers for component-scoped and context-scoped loggers.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the default slog logger. Format is "json" or "text".
func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit output writer, used by tests.
func SetupWriter(w io.Writer, level string, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns a logger tagged with the given component name.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// WithDocID attaches a document id to the context so downstream log lines
// carry it.
func WithDocID(ctx context.Context, docID uint64) context.Context {
	return context.WithValue(ctx, contextKey{}, docID)
}

// FromContext returns the default logger, annotated with the document id if
// one was attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if docID, ok := ctx.Value(contextKey{}).(uint64); ok {
		logger = logger.With("doc_id", docID)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
