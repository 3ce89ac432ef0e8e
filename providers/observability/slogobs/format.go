package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Format represents the output format for logs.
type Format string

const (
	// FormatPretty is tint's colored single-line console output (default).
	FormatPretty Format = "pretty"

	// FormatJSON is slog's standard JSON output.
	FormatJSON Format = "json"
)

// ParseFormat parses a format string. Unknown values map to FormatPretty.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatPretty
	}
}

// LevelTrace sits below slog.LevelDebug and is used by Logger.Trace.
const LevelTrace = slog.LevelDebug - 4

// ParseLogLevel parses TRACE, DEBUG, INFO, WARN, WARNING or ERROR
// (case-insensitive). Unknown values yield INFO with a warning on stderr.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "", "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Warning: Unknown log level '%s', using INFO\n", level)
		return slog.LevelInfo
	}
}
