package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// Setup initializes the global slog logger with JSON output to stdout.
func Setup() {
	slog.SetDefault(slog.New(NewMultiHandler(NewStdoutHandler())))
}

func NewStdoutHandler() slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
}

// WithCorrelationID stores the id that ties together every log line of one
// checkout, webhook or job run.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// FromContext returns the default logger carrying the context's correlation id.
// A MultiHandler already stamps the id on *Context calls.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if _, ok := logger.Handler().(*MultiHandler); ok {
		return logger
	}
	if id := CorrelationID(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}
	return logger
}
