// Package ollama implements [ai.Provider] for a local Ollama model server.
//
// Ollama needs no credential. Streaming replies are newline-delimited JSON
// objects without an SSE "data:" prefix; they go through the same
// normalizer as the remote providers.
package ollama
