// Package slogobs provides an observability.Provider backed by log/slog.
// Console output goes through github.com/lmittmann/tint; FormatJSON switches
// to slog's JSON handler for log aggregation. The entry point is [New].
package slogobs
