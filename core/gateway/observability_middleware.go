package gateway

import (
	"context"
	"time"

	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

// NewObservabilityMiddleware opens a span around every call and records
// request counts, durations and token usage. The span and observer are put
// on the context before next runs, so the resolver, the HTTP helpers and the
// stream normalizer log and count through the same observer.
//
// New prepends it to the chain when an observer is configured, making it the
// outermost wrapper so it sees the final outcome after timeouts.
func NewObservabilityMiddleware(observer observability.Provider) MiddlewareConfig {
	return MiddlewareConfig{
		Send:   buildObsSend(observer),
		Stream: buildObsStream(observer),
	}
}

func buildObsSend(observer observability.Provider) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, span := startCallSpan(ctx, observer, observability.SpanCompletion, request)

			start := time.Now()
			response, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				recordObsFailure(ctx, span, observer, request, err, elapsed)
				return nil, err
			}

			recordObsSuccess(ctx, span, observer, request, response, elapsed)
			return response, nil
		}
	}
}

func buildObsStream(observer observability.Provider) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			ctx, span := startCallSpan(ctx, observer, observability.SpanStreamCompletion, request)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				recordObsFailure(ctx, span, observer, request, err, time.Since(start))
				return nil, err
			}
			span.AddEvent(observability.EventStreamStarted)

			return wrapStreamWithObservability(ctx, stream, span, observer, request, start), nil
		}
	}
}

func startCallSpan(ctx context.Context, observer observability.Provider, name string, request ai.ChatRequest) (context.Context, observability.Span) {
	ctx, span := observer.StartSpan(ctx, name,
		observability.String(observability.AttrLLMProvider, request.Provider.String()),
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Bool(observability.AttrLLMStreaming, request.Stream),
		observability.Int(observability.AttrLLMMaxTokens, request.MaxTokens),
	)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, observer)

	observer.Debug(ctx, "Gateway call started",
		observability.String(observability.AttrLLMProvider, request.Provider.String()),
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Bool(observability.AttrLLMStreaming, request.Stream),
	)
	return ctx, span
}

// wrapStreamWithObservability records the outcome once the stream ends,
// fails, or is abandoned by the consumer.
func wrapStreamWithObservability(
	ctx context.Context,
	stream *ai.ChatStream,
	span observability.Span,
	observer observability.Provider,
	request ai.ChatRequest,
	start time.Time,
) *ai.ChatStream {
	return wrapStream(stream, func(yield func(ai.Event, error) bool) {
		defer func() {
			observer.Histogram(observability.MetricStreamSessionSeconds).Record(ctx, time.Since(start).Seconds(),
				observability.String(observability.AttrLLMProvider, request.Provider.String()))
		}()

		for event, err := range stream.Iter() {
			if err != nil {
				recordObsFailure(ctx, span, observer, request, err, time.Since(start))
				yield(event, err)
				return
			}

			// Done is recorded before it is yielded: Collect stops at Done.
			if event.IsDone() {
				span.AddEvent(observability.EventStreamEnded)
				recordObsSuccess(ctx, span, observer, request, &ai.ChatResponse{
					Provider:   stream.Provider(),
					Model:      request.Model,
					Content:    event.Text,
					Citations:  event.Citations,
					StopReason: event.StopReason,
					Usage:      event.Usage,
				}, time.Since(start))
				yield(event, nil)
				return
			}

			if !yield(event, nil) {
				span.SetStatus(observability.StatusOK, "stream abandoned")
				span.End()
				observer.Info(ctx, "Stream abandoned by consumer",
					observability.String(observability.AttrLLMProvider, request.Provider.String()),
					observability.Duration(observability.AttrDuration, time.Since(start)),
				)
				return
			}
		}
	})
}

func recordObsFailure(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	request ai.ChatRequest,
	err error,
	elapsed time.Duration,
) {
	span.RecordError(err)
	span.SetStatus(observability.StatusError, "gateway call failed")
	span.End()

	observer.Error(ctx, "Gateway call failed",
		observability.String(observability.AttrLLMProvider, request.Provider.String()),
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.Error(err),
	)
	observer.Counter(observability.MetricRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "error"),
		observability.String(observability.AttrLLMProvider, request.Provider.String()),
	)
}

func recordObsSuccess(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	request ai.ChatRequest,
	response *ai.ChatResponse,
	elapsed time.Duration,
) {
	providerAttr := observability.String(observability.AttrLLMProvider, request.Provider.String())

	observer.Histogram(observability.MetricRequestSeconds).Record(ctx, elapsed.Seconds(), providerAttr)
	observer.Counter(observability.MetricRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "success"), providerAttr)

	logAttrs := []observability.Attribute{
		providerAttr,
		observability.String(observability.AttrLLMModel, response.Model),
		observability.String(observability.AttrLLMStopReason, response.StopReason),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.Int(observability.AttrStreamCitations, len(response.Citations)),
	}

	if response.Usage != nil {
		observer.Counter(observability.MetricTokensInput).Add(ctx, int64(response.Usage.InputTokens), providerAttr)
		observer.Counter(observability.MetricTokensOutput).Add(ctx, int64(response.Usage.OutputTokens), providerAttr)

		span.SetAttributes(
			observability.Int(observability.AttrLLMTokensInput, response.Usage.InputTokens),
			observability.Int(observability.AttrLLMTokensOutput, response.Usage.OutputTokens),
		)
		logAttrs = append(logAttrs,
			observability.Int(observability.AttrLLMTokensInput, response.Usage.InputTokens),
			observability.Int(observability.AttrLLMTokensOutput, response.Usage.OutputTokens),
		)
	}

	if response.Content != "" {
		logAttrs = append(logAttrs, observability.String("response", utils.TruncateString(response.Content, 100)))
	}

	observer.Info(ctx, "Gateway call completed", logAttrs...)
	span.SetStatus(observability.StatusOK, "success")
	span.End()
}
