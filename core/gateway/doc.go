// Package gateway is the consumer-facing entry point: it resolves credentials,
// shapes requests for the chosen provider, sends them through a middleware
// chain, and turns streaming responses into normalized event streams.
//
// A Gateway is safe for concurrent use. Each streaming call owns its own
// session; nothing mutable is shared between calls.
//
//	gw := gateway.New(resolver.New(store, legacy))
//	stream, err := gw.StreamCompletion(ctx, ai.ChatRequest{Provider: ai.ProviderClaude, Prompt: "Hi"})
//	for event, err := range stream.Iter() { ... }
package gateway
