package anthropic

import "encoding/json"

/*
	ANTHROPIC MESSAGES API - REQUEST TYPES
*/

// anthropicRequest represents the request body for Anthropic's Messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"` // Required by Anthropic on every request
	Temperature *float64           `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

// anthropicMessage represents a single message in the conversation.
type anthropicMessage struct {
	Role    string                  `json:"role"`    // "user" or "assistant"
	Content []anthropicContentBlock `json:"content"` // Array of content blocks
}

// anthropicContentBlock is a discriminated union via the Type field:
//   - "text": Text
//   - "image": Source (base64 or url)
type anthropicContentBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

// anthropicSource represents a media source (base64 inline or URL reference).
type anthropicSource struct {
	Type      string `json:"type"`                 // "base64" or "url"
	MediaType string `json:"media_type,omitempty"` // MIME type (for base64)
	Data      string `json:"data,omitempty"`       // Base64-encoded data
	URL       string `json:"url,omitempty"`        // URL reference
}

// anthropicTool is a server-side tool descriptor. Only web search is sent.
type anthropicTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

/*
	ANTHROPIC MESSAGES API - RESPONSE TYPES
*/

// anthropicResponse represents the response from Anthropic's Messages API.
type anthropicResponse struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`    // "message"
	Role       string                 `json:"role"`    // "assistant"
	Content    []responseContentBlock `json:"content"` // Response content blocks
	Model      string                 `json:"model"`
	StopReason string                 `json:"stop_reason"`
	Usage      anthropicUsage         `json:"usage"`
}

// responseContentBlock represents a content block in the response. Only text
// blocks contribute to the answer; server_tool_use and web_search_tool_result
// blocks are skipped.
type responseContentBlock struct {
	Type      string              `json:"type"`
	Text      string              `json:"text,omitempty"`
	Citations []anthropicCitation `json:"citations,omitempty"`
}

// anthropicCitation is a web search result location attached to text.
type anthropicCitation struct {
	Type           string `json:"type"`
	CitedText      string `json:"cited_text"`
	URL            string `json:"url"`
	Title          string `json:"title"`
	EncryptedIndex string `json:"encrypted_index"`
}

// anthropicUsage reports token consumption for a single request.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

/*
	ANTHROPIC SSE STREAMING - WIRE TYPES

	Anthropic streaming uses SSE with "event:" lines naming the event, followed
	by "data:" lines whose JSON payload repeats the name in its "type" field.
	The normalizer only decodes "data:" payloads, so "type" is the discriminator.

	Event lifecycle:
	  message_start → content_block_start → content_block_delta(s) →
	  content_block_stop → message_delta → message_stop
*/

// streamEvent is the top-level envelope for all Anthropic SSE events. Fields
// required by a variant are pointers or raw messages so their absence can be
// told apart from zero values.
type streamEvent struct {
	Type         string             `json:"type"`
	Message      *anthropicResponse `json:"message,omitempty"`       // message_start
	Index        *int               `json:"index,omitempty"`         // content_block_start/delta/stop
	ContentBlock *streamBlock       `json:"content_block,omitempty"` // content_block_start
	Delta        json.RawMessage    `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *anthropicUsage    `json:"usage,omitempty"`         // message_delta
	Error        *anthropicError    `json:"error,omitempty"`         // error
}

// streamBlock announces the kind of block a content_block_start opens.
type streamBlock struct {
	Type string `json:"type"`
}

// blockDelta is the payload of content_block_delta. Type discriminates:
//   - "text_delta": Text is populated
//   - "citations_delta": Citation is populated
//   - anything else (input_json_delta for server tool queries): ignored
type blockDelta struct {
	Type     string             `json:"type"`
	Text     *string            `json:"text,omitempty"`
	Citation *anthropicCitation `json:"citation,omitempty"`
}

// messageDelta is the payload of message_delta.
type messageDelta struct {
	StopReason string `json:"stop_reason,omitempty"`
}

// anthropicError represents an error event in the SSE stream.
type anthropicError struct {
	Type    string `json:"type"`    // Error type (e.g., "overloaded_error", "api_error")
	Message string `json:"message"` // Human-readable error description
}
