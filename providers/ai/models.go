package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

/*
	##### PROVIDERS #####
*/

// ProviderName is the canonical, lowercase identity of a provider. It keys
// every credential tier and the provider registry.
type ProviderName string

const (
	ProviderClaude     ProviderName = "claude"
	ProviderPerplexity ProviderName = "perplexity"
	ProviderOllama     ProviderName = "ollama"
)

// providerAliases maps alternative spellings onto canonical names.
var providerAliases = map[string]ProviderName{
	"anthropic": ProviderClaude,
}

// KnownProviders lists the providers the gateway ships adapters for, in the
// order they are presented to users.
func KnownProviders() []ProviderName {
	return []ProviderName{ProviderClaude, ProviderPerplexity, ProviderOllama}
}

// CredentialProviders lists the known providers that authenticate with an
// API key. Only these are read from or migrated out of legacy configuration.
func CredentialProviders() []ProviderName {
	return []ProviderName{ProviderClaude, ProviderPerplexity}
}

// CanonicalProvider lowercases and trims a user-supplied name and resolves
// aliases. It does not check that the provider is known.
func CanonicalProvider(name string) ProviderName {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := providerAliases[normalized]; ok {
		return alias
	}
	return ProviderName(normalized)
}

func (p ProviderName) String() string {
	return string(p)
}

// EnvVar is the environment variable and legacy config key that may carry
// this provider's secret, e.g. CLAUDE_API_KEY.
func (p ProviderName) EnvVar() string {
	return strings.ToUpper(string(p)) + "_API_KEY"
}

// DisplayName is the human label shown for stored credentials, e.g. "Claude API".
func (p ProviderName) DisplayName() string {
	if p == "" {
		return ""
	}
	name := string(p)
	return strings.ToUpper(name[:1]) + name[1:] + " API"
}

/*
	##### PROVIDER INPUT #####
*/

// MessageRole is the author of a message in a conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ContentBlockType discriminates the typed blocks of a multi-part message.
type ContentBlockType string

const (
	ContentText  ContentBlockType = "text"
	ContentImage ContentBlockType = "image"
)

// ImageSource references image data for an image block. Type is "base64"
// (MediaType and Data set) or "url" (URL set).
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ContentBlock is one typed part of a message: text or an image reference.
type ContentBlock struct {
	Type   ContentBlockType `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *ImageSource     `json:"source,omitempty"`
}

// MessageContent is either plain text or an ordered sequence of blocks.
// When Blocks is non-nil it takes precedence over Text.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

// TextContent builds plain-text message content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// BlockContent builds multi-part message content.
func BlockContent(blocks ...ContentBlock) MessageContent {
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	return MessageContent{Blocks: blocks}
}

// IsBlocks reports whether the content is a block sequence.
func (c MessageContent) IsBlocks() bool {
	return c.Blocks != nil
}

// PlainText returns the text of the content. For block content the text
// blocks are joined with newlines and image blocks are skipped.
func (c MessageContent) PlainText() string {
	if !c.IsBlocks() {
		return c.Text
	}
	parts := make([]string, 0, len(c.Blocks))
	for _, block := range c.Blocks {
		if block.Type == ContentText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// MarshalJSON encodes text content as a JSON string and block content as an array.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsBlocks() {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of content blocks.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*c = MessageContent{}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = MessageContent{Text: text}
		return nil
	case strings.HasPrefix(trimmed, "["):
		var blocks []ContentBlock
		if err := json.Unmarshal(data, &blocks); err != nil {
			return err
		}
		*c = BlockContent(blocks...)
		return nil
	default:
		return fmt.Errorf("message content must be a string or an array of blocks, got %s", trimmed)
	}
}

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole    `json:"role"`
	Content MessageContent `json:"content"`
}

// ToolConfig carries optional provider tools. Only web search is supported,
// and only by claude.
type ToolConfig struct {
	WebSearch bool `json:"web_search,omitempty"`
	MaxUses   int  `json:"max_uses,omitempty"` // 0 means the adapter default
}

// ChatRequest is the provider-agnostic request. It is treated as immutable
// once handed to the gateway; defaults are applied to a copy.
type ChatRequest struct {
	Provider    ProviderName `json:"provider"`
	Model       string       `json:"model,omitempty"`
	Messages    []Message    `json:"messages,omitempty"`
	Prompt      string       `json:"prompt,omitempty"` // Used as a single user message when Messages is empty
	System      string       `json:"system,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
	ToolConfig  *ToolConfig  `json:"tool_config,omitempty"`
}

// Conversation returns the request messages, synthesizing a single user
// message from Prompt when no messages were given.
func (r ChatRequest) Conversation() []Message {
	if len(r.Messages) > 0 || r.Prompt == "" {
		return r.Messages
	}
	return []Message{{Role: RoleUser, Content: TextContent(r.Prompt)}}
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 {
	return &v
}

/*
	##### PROVIDER OUTPUT #####
*/

// Citation is a source reference attached to an answer. Claude citations
// carry the cited text and title; Perplexity citations carry only a URL.
type Citation struct {
	Type           string `json:"type,omitempty"`
	URL            string `json:"url,omitempty"`
	Title          string `json:"title,omitempty"`
	CitedText      string `json:"cited_text,omitempty"`
	EncryptedIndex string `json:"encrypted_index,omitempty"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// ChatResponse is the result of a synchronous completion, and the collected
// form of a streamed one.
type ChatResponse struct {
	ID         string       `json:"id,omitempty"`
	Provider   ProviderName `json:"provider"`
	Model      string       `json:"model,omitempty"`
	Content    string       `json:"content"`
	Citations  []Citation   `json:"citations"`
	StopReason string       `json:"stop_reason,omitempty"`
	Usage      *Usage       `json:"usage,omitempty"`
}

// ModelInfo describes one model a provider offers.
type ModelInfo struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Provider      ProviderName `json:"provider"`
	Description   string       `json:"description,omitempty"`
	ParameterSize string       `json:"parameter_size,omitempty"`
	Quantization  string       `json:"quantization,omitempty"`
	ModifiedAt    string       `json:"modified_at,omitempty"`
}

// EnvOr returns the value of the environment variable key, or fallback when
// it is unset or empty.
func EnvOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
