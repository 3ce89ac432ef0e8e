package observability

import (
	"context"
	"log/slog"
)

type spanKey struct{}

type observerKey struct{}

// SpanFromContext extracts a Span from the context.
// Returns nil if no span is present.
func SpanFromContext(ctx context.Context) Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanKey{}).(Span)
	return span
}

// ContextWithSpan returns a new context with the given span attached.
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, spanKey{}, span)
}

// ObserverFromContext extracts the observability Provider from the context.
// Returns nil if none was attached.
func ObserverFromContext(ctx context.Context) Provider {
	if ctx == nil {
		return nil
	}
	observer, _ := ctx.Value(observerKey{}).(Provider)
	return observer
}

// ContextWithObserver returns a new context carrying the given Provider.
func ContextWithObserver(ctx context.Context, observer Provider) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, observerKey{}, observer)
}

// LoggerFrom returns the Logger attached to ctx, or a Logger writing to
// slog.Default() when nothing is attached. Warnings about dropped frames or
// failed migrations must reach some log even when the caller wired nothing.
func LoggerFrom(ctx context.Context) Logger {
	if observer := ObserverFromContext(ctx); observer != nil {
		return observer
	}
	return defaultLogger{}
}

// CounterFrom returns the named counter of the attached observer, or a no-op
// counter when none is attached.
func CounterFrom(ctx context.Context, name string) Counter {
	if observer := ObserverFromContext(ctx); observer != nil {
		return observer.Counter(name)
	}
	return noopCounter{}
}

type defaultLogger struct{}

func (defaultLogger) Trace(ctx context.Context, msg string, attrs ...Attribute) {
	logDefault(ctx, slog.LevelDebug-4, msg, attrs)
}

func (defaultLogger) Debug(ctx context.Context, msg string, attrs ...Attribute) {
	logDefault(ctx, slog.LevelDebug, msg, attrs)
}

func (defaultLogger) Info(ctx context.Context, msg string, attrs ...Attribute) {
	logDefault(ctx, slog.LevelInfo, msg, attrs)
}

func (defaultLogger) Warn(ctx context.Context, msg string, attrs ...Attribute) {
	logDefault(ctx, slog.LevelWarn, msg, attrs)
}

func (defaultLogger) Error(ctx context.Context, msg string, attrs ...Attribute) {
	logDefault(ctx, slog.LevelError, msg, attrs)
}

func logDefault(ctx context.Context, level slog.Level, msg string, attrs []Attribute) {
	if ctx == nil {
		ctx = context.Background()
	}
	logAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	slog.Default().LogAttrs(ctx, level, msg, logAttrs...)
}

type noopCounter struct{}

func (noopCounter) Add(context.Context, int64, ...Attribute) {}
