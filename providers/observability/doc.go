// Package observability defines the tracing, metrics and structured logging
// interfaces used throughout the gateway.
//
// The central entry point is [Provider], which composes [Tracer], [Metrics],
// and [Logger]. Callers attach a Provider and an active [Span] to a
// [context.Context] with [ContextWithObserver] and [ContextWithSpan]; library
// code retrieves them with [ObserverFromContext], [SpanFromContext] and
// [LoggerFrom]. Attribute keys live in semconv.go.
//
// Secrets never appear in attributes. Use [SecretLength] to describe one.
package observability
