package gateway

import (
	"context"
	"time"

	"github.com/childreth/Olly/providers/ai"
)

// NewTimeoutMiddleware bounds synchronous calls by requestTimeout and
// streaming calls by streamTimeout. A zero duration disables the bound.
//
// The stream deadline covers the whole session, not just the time to the
// first byte: the cancel function runs once the stream ends, fails or is
// abandoned by the consumer. A shorter deadline already on the caller's
// context still wins.
func NewTimeoutMiddleware(requestTimeout, streamTimeout time.Duration) MiddlewareConfig {
	return MiddlewareConfig{
		Send:   buildSendTimeout(requestTimeout),
		Stream: buildStreamTimeout(streamTimeout),
	}
}

func buildSendTimeout(timeout time.Duration) Middleware {
	return func(next SendFunc) SendFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}

func buildStreamTimeout(timeout time.Duration) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)

			stream, err := next(ctx, request)
			if err != nil {
				cancel()
				return nil, err
			}
			return wrapStreamWithCancel(stream, cancel), nil
		}
	}
}

// wrapStreamWithCancel calls cancel when the stream finishes, errors, or the
// consumer breaks out of the loop.
func wrapStreamWithCancel(stream *ai.ChatStream, cancel context.CancelFunc) *ai.ChatStream {
	return wrapStream(stream, func(yield func(ai.Event, error) bool) {
		defer cancel()

		for event, err := range stream.Iter() {
			if !yield(event, err) || err != nil || event.IsDone() {
				return
			}
		}
	})
}
