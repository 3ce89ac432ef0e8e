package ollama

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *requestOption `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // Base64 image data
}

type requestOption struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

// chatChunk is both a streamed NDJSON line and the synchronous reply. Done is
// a pointer so a line without it is rejected in the stream grammar.
type chatChunk struct {
	Model           string       `json:"model"`
	CreatedAt       string       `json:"created_at"`
	Message         *chatMessage `json:"message,omitempty"`
	Done            *bool        `json:"done"`
	DoneReason      string       `json:"done_reason,omitempty"`
	PromptEvalCount int          `json:"prompt_eval_count,omitempty"`
	EvalCount       int          `json:"eval_count,omitempty"`
	Error           string       `json:"error,omitempty"`
}
