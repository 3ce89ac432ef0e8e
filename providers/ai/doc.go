// Package ai defines the provider-agnostic types shared by the gateway: the
// request and response shapes, the normalized stream [Event] variants, the
// [Dialect] each provider uses to decode its own stream lines, and the error
// taxonomy every layer reports through.
//
// Provider adapters (anthropic, perplexity, ollama) map [ChatRequest] onto
// their wire format and return raw byte streams; decoding those streams is
// the job of core/stream, driven by the adapter's [Dialect].
package ai
