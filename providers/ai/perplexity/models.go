package perplexity

/*
	CHAT COMPLETIONS API - REQUEST TYPES
*/

// chatRequest is the request body for /chat/completions.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatMessage is a flat role/content pair; Perplexity takes text content only.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

/*
	CHAT COMPLETIONS API - RESPONSE TYPES
*/

// chatResponse is a synchronous completion.
type chatResponse struct {
	ID            string         `json:"id"`
	Model         string         `json:"model"`
	Choices       []chatChoice   `json:"choices"`
	Citations     []string       `json:"citations,omitempty"`
	SearchResults []searchResult `json:"search_results,omitempty"`
	Usage         *chatUsage     `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// searchResult is the richer citation form newer API versions send next to
// the plain citations list.
type searchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

/*
	CHAT COMPLETIONS STREAMING API - RESPONSE TYPES

	Each SSE chunk carries one choices array with incremental deltas. The
	citations list is attached to later chunks, typically the terminal one.
*/

// streamChunk is a single SSE chunk. Choices is a pointer so a chunk without
// the field is rejected rather than read as an empty list.
type streamChunk struct {
	ID            string          `json:"id"`
	Model         string          `json:"model"`
	Choices       *[]streamChoice `json:"choices"`
	Citations     []string        `json:"citations,omitempty"`
	SearchResults []searchResult  `json:"search_results,omitempty"`
	Usage         *chatUsage      `json:"usage,omitempty"`
}

// streamChoice uses Delta instead of Message.
type streamChoice struct {
	Index        int          `json:"index"`
	Delta        *streamDelta `json:"delta"`
	FinishReason *string      `json:"finish_reason"` // Nullable; nil until the final chunk
}

// streamDelta carries the incremental content for a chunk.
type streamDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"` // Nullable to distinguish empty string from absent
}
