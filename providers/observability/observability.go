package observability

import (
	"context"
	"time"
)

// Provider bundles the three signals the gateway emits. The credential
// store, the resolver, the normalizer and the dispatcher all reach it through
// the context (see ContextWithObserver); LoggerFrom and CounterFrom fall
// back to defaults when none is attached.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// --- TRACING ---

// Tracer starts spans around gateway operations: a completion call, a stream
// session, a credential resolution or a legacy migration.
type Tracer interface {
	// StartSpan opens a child of the span already in ctx, if any. The caller
	// must End the returned span.
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is one traced operation.
type Span interface {
	// End closes the span.
	End()

	// SetAttributes adds or overwrites attributes, e.g. token counts once a
	// stream finishes.
	SetAttributes(attrs ...Attribute)

	// SetStatus records the outcome of the operation.
	SetStatus(code StatusCode, description string)

	// RecordError attaches err without changing the status.
	RecordError(err error)

	// AddEvent marks a point inside the span, such as a salvaged frame or the
	// end of a stream.
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// --- METRICS ---

// Metrics hands out named instruments. Names come from semconv.go.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Counter only goes up: requests, migrated keys, dropped frames.
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records durations in seconds.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

// --- LOGGING ---

// Logger writes leveled, structured records. Secrets must never appear in
// msg or attrs; use SecretLength.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// --- ATTRIBUTES ---

// Attribute is one key/value pair on a span, metric or log record.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Strings carries a list, e.g. the providers a migration moved.
func Strings(key string, values []string) Attribute {
	return Attribute{Key: key, Value: values}
}

func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error stores err's message under "error"; a nil error gives an empty value.
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: "error", Value: ""}
	}
	return Attribute{Key: "error", Value: err.Error()}
}

// SecretLength describes a credential without revealing it.
func SecretLength(secret string) Attribute {
	return Attribute{Key: AttrCredentialLength, Value: len(secret)}
}
