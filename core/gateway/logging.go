package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
)

// LogLevel controls how much detail the logging middleware emits per call.
type LogLevel int

const (
	// LogLevelMinimal logs provider, model, duration and token counts.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the message count and stop reason.
	LogLevelStandard

	// LogLevelVerbose adds the first message and the response text, each
	// truncated. It writes prompt and answer text to the log and is meant for
	// local debugging only.
	LogLevelVerbose
)

// truncateLen bounds content excerpts in verbose log output.
const truncateLen = 500

// NewLoggingMiddleware logs one entry before and one after every call. For
// streams the completion entry is written once the stream ends.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) MiddlewareConfig {
	return MiddlewareConfig{
		Send:   buildSendLogging(logger, level),
		Stream: buildStreamLogging(logger, level),
	}
}

func buildSendLogging(logger *slog.Logger, level LogLevel) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			logger.InfoContext(ctx, "llm send", buildRequestAttrs(request, level)...)

			start := time.Now()
			response, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "llm send failed",
					slog.String("provider", request.Provider.String()),
					slog.Duration("duration", elapsed),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "llm send completed", buildResponseAttrs(response, elapsed, level)...)
			return response, nil
		}
	}
}

func buildStreamLogging(logger *slog.Logger, level LogLevel) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			logger.InfoContext(ctx, "llm stream", buildRequestAttrs(request, level)...)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed",
					slog.String("provider", request.Provider.String()),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			return wrapStreamWithLogging(ctx, stream, logger, request, level, start), nil
		}
	}
}

// wrapStreamWithLogging logs completion when Done arrives, an error entry on
// failure, and an "abandoned" entry when the consumer stops early.
func wrapStreamWithLogging(
	ctx context.Context,
	stream *ai.ChatStream,
	logger *slog.Logger,
	request ai.ChatRequest,
	level LogLevel,
	start time.Time,
) *ai.ChatStream {
	return wrapStream(stream, func(yield func(ai.Event, error) bool) {
		for event, err := range stream.Iter() {
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed",
					slog.String("provider", request.Provider.String()),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", err.Error()),
				)
				yield(event, err)
				return
			}

			if event.IsDone() {
				response := &ai.ChatResponse{
					Provider:   stream.Provider(),
					Model:      request.Model,
					Content:    event.Text,
					Citations:  event.Citations,
					StopReason: event.StopReason,
					Usage:      event.Usage,
				}
				logger.InfoContext(ctx, "llm stream completed", buildResponseAttrs(response, time.Since(start), level)...)
				yield(event, nil)
				return
			}

			if !yield(event, nil) {
				logger.InfoContext(ctx, "llm stream abandoned",
					slog.String("provider", request.Provider.String()),
					slog.Duration("duration", time.Since(start)),
				)
				return
			}
		}
	})
}

func buildRequestAttrs(request ai.ChatRequest, level LogLevel) []any {
	attrs := []any{
		slog.String("provider", request.Provider.String()),
		slog.String("model", request.Model),
	}

	messages := request.Conversation()
	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("message_count", len(messages)))
	}

	if level >= LogLevelVerbose && len(messages) > 0 {
		first := messages[0]
		attrs = append(attrs,
			slog.String("first_message_role", string(first.Role)),
			slog.String("first_message_content", utils.TruncateString(first.Content.PlainText(), truncateLen)),
		)
	}

	return attrs
}

func buildResponseAttrs(response *ai.ChatResponse, elapsed time.Duration, level LogLevel) []any {
	attrs := []any{
		slog.String("provider", response.Provider.String()),
		slog.String("model", response.Model),
		slog.Duration("duration", elapsed),
	}

	if response.Usage != nil {
		attrs = append(attrs,
			slog.Int("input_tokens", response.Usage.InputTokens),
			slog.Int("output_tokens", response.Usage.OutputTokens),
		)
	}

	if level >= LogLevelStandard {
		if response.StopReason != "" {
			attrs = append(attrs, slog.String("stop_reason", response.StopReason))
		}
		attrs = append(attrs, slog.Int("citations", len(response.Citations)))
	}

	if level >= LogLevelVerbose && response.Content != "" {
		attrs = append(attrs, slog.String("response_content", utils.TruncateString(response.Content, truncateLen)))
	}

	return attrs
}
