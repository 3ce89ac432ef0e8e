package gateway

import (
	"context"

	"github.com/childreth/Olly/providers/ai"
)

// SendFunc performs one synchronous completion. It is the unit threaded
// through the send middleware chain.
type SendFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)

// StreamFunc opens one streaming completion. It is the unit threaded through
// the stream middleware chain.
type StreamFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error)

// Middleware wraps a SendFunc. The first middleware in a list is the
// outermost wrapper.
type Middleware func(next SendFunc) SendFunc

// StreamMiddleware wraps a StreamFunc and may wrap the returned stream to
// observe its events.
type StreamMiddleware func(next StreamFunc) StreamFunc

// MiddlewareConfig pairs a send middleware with its optional streaming
// counterpart. A nil Stream means streaming calls skip this entry.
type MiddlewareConfig struct {
	Send   Middleware
	Stream StreamMiddleware
}

// buildSendChain wraps base so that middlewares[0] runs first.
func buildSendChain(base SendFunc, middlewares []MiddlewareConfig) SendFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Send != nil {
			chain = middlewares[i].Send(chain)
		}
	}
	return chain
}

// buildStreamChain wraps base with every non-nil stream middleware so that
// the first one runs first.
func buildStreamChain(base StreamFunc, middlewares []MiddlewareConfig) StreamFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Stream != nil {
			chain = middlewares[i].Stream(chain)
		}
	}
	return chain
}

// wrapStream returns a stream over the same provider whose iterator is
// produced by wrap.
func wrapStream(stream *ai.ChatStream, wrap func(yield func(ai.Event, error) bool)) *ai.ChatStream {
	return ai.NewChatStream(stream.Provider(), wrap)
}
