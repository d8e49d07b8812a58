package logger

import (
	"context"

	"go.uber.org/zap"
)

// loggerKey keys the request-scoped logger in a context.
type loggerKey struct{}

// ContextWithLogger returns a child context carrying the logger.
// Handlers retrieve it with FromContext so request-scoped fields
// (request id, route) ride along implicitly.
func ContextWithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the context's logger. Contexts without one get a
// no-op logger rather than nil, so call sites never guard.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}
