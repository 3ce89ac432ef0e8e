package gateway

import (
	"context"

	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

// Sink receives the events of one streaming call: every text delta and
// citation as it is decoded, then one Done event with the full text and
// citation list.
type Sink interface {
	Send(ctx context.Context, event ai.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event ai.Event) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, event ai.Event) error {
	return f(ctx, event)
}

// ChannelSink delivers events on a channel. Send blocks until the receiver
// takes the event or the context ends.
type ChannelSink chan<- ai.Event

// Send implements Sink.
func (c ChannelSink) Send(ctx context.Context, event ai.Event) error {
	select {
	case c <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit drains stream into sink and returns the collected response. Only text
// deltas, citations and the Done event are forwarded; lifecycle markers stay
// internal. A failing sink is logged and counted and never stops decoding.
// A stream error is returned with the partial response, and no Done event is
// forwarded after it.
func Emit(ctx context.Context, stream *ai.ChatStream, sink Sink) (*ai.ChatResponse, error) {
	logger := observability.LoggerFrom(ctx)
	provider := stream.Provider().String()
	failures := 0

	forwarding := wrapStream(stream, func(yield func(ai.Event, error) bool) {
		for event, err := range stream.Iter() {
			if err == nil && forwarded(event) {
				if sendErr := sink.Send(ctx, event); sendErr != nil {
					failures++
					observability.CounterFrom(ctx, observability.MetricForwardFailures).Add(ctx, 1,
						observability.String(observability.AttrLLMProvider, provider))
					logger.Warn(ctx, "Failed to forward stream event",
						observability.String(observability.AttrLLMProvider, provider),
						observability.String(observability.AttrStreamEventType, string(event.Type)),
						observability.Error(sendErr),
					)
				}
			}
			if !yield(event, err) {
				return
			}
		}
	})

	response, err := forwarding.Collect()
	if failures > 0 {
		logger.Debug(ctx, "Stream finished with forwarding failures",
			observability.String(observability.AttrLLMProvider, provider),
			observability.Int("forward_failures", failures),
		)
	}
	return response, err
}

func forwarded(event ai.Event) bool {
	switch event.Type {
	case ai.EventTextDelta, ai.EventCitation, ai.EventDone:
		return true
	default:
		return false
	}
}
