// Package perplexity implements [ai.Provider] for Perplexity's
// search-augmented, OpenAI-compatible chat completions API.
//
// Requests are sent as a flat messages array with a stream flag. Stream chunks
// share a single choice/delta shape; the source URLs arrive as a citations
// list that Perplexity repeats on later chunks, and the normalizer keeps each
// citation once.
package perplexity
