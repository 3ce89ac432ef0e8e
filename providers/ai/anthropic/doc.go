// Package anthropic implements [ai.Provider] for Anthropic's Messages API,
// exposed in the gateway under the provider name "claude".
//
// It converts [ai.ChatRequest] into the Messages wire format (including the
// optional server-side web search tool), maps synchronous replies back into
// [ai.ChatResponse], and supplies the strict [ai.Dialect] that decodes the
// Messages SSE event grammar for the stream normalizer.
//
// The primary entry point is [New], which reads ANTHROPIC_API_BASE_URL from
// the environment. Secrets are supplied per call, never stored on the provider.
package anthropic
