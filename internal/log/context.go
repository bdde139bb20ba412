package log

import "context"

type contextKey struct{}

// WithContext stores the run-scoped logger in ctx.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the run logger stored in ctx, keeping the component
// of fallback. Without one it returns fallback, or a discarding logger when
// fallback is nil.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if fallback == nil {
		fallback = Discard()
	}
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger.WithComponent(fallback.Component())
	}
	return fallback
}
