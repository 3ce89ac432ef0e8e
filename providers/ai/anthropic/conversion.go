package anthropic

import (
	"strings"

	"github.com/childreth/Olly/providers/ai"
)

const (
	// DefaultModel is used when a request names no model.
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens is sent when a request sets none; Anthropic requires it.
	DefaultMaxTokens = 1024

	// DefaultTemperature keeps answers deterministic unless the caller overrides it.
	DefaultTemperature = 0.0

	// webSearchToolType is the versioned server tool identifier for web search.
	webSearchToolType = "web_search_20250305"

	// defaultWebSearchMaxUses caps searches per request when ToolConfig sets no limit.
	defaultWebSearchMaxUses = 5
)

// requestToAnthropic converts a generic request into the Messages wire format.
// System-role messages are lifted into the top-level system field because the
// Messages API does not accept them inline.
func requestToAnthropic(request ai.ChatRequest) anthropicRequest {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	temperature := request.Temperature
	if temperature == nil {
		temperature = ai.Float64(DefaultTemperature)
	}

	systemParts := []string{}
	if request.System != "" {
		systemParts = append(systemParts, request.System)
	}

	messages := []anthropicMessage{}
	for _, message := range request.Conversation() {
		if message.Role == ai.RoleSystem {
			if text := message.Content.PlainText(); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}
		messages = append(messages, anthropicMessage{
			Role:    string(message.Role),
			Content: contentToBlocks(message.Content),
		})
	}

	return anthropicRequest{
		Model:       model,
		Messages:    messages,
		System:      strings.Join(systemParts, "\n\n"),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Tools:       buildTools(request.ToolConfig),
		Stream:      request.Stream,
	}
}

// contentToBlocks maps message content onto Anthropic content blocks. Plain
// text becomes a single text block.
func contentToBlocks(content ai.MessageContent) []anthropicContentBlock {
	if !content.IsBlocks() {
		return []anthropicContentBlock{{Type: "text", Text: content.Text}}
	}

	blocks := make([]anthropicContentBlock, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		switch block.Type {
		case ai.ContentText:
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: block.Text})
		case ai.ContentImage:
			if block.Source == nil {
				continue
			}
			blocks = append(blocks, anthropicContentBlock{
				Type: "image",
				Source: &anthropicSource{
					Type:      block.Source.Type,
					MediaType: block.Source.MediaType,
					Data:      block.Source.Data,
					URL:       block.Source.URL,
				},
			})
		}
	}
	return blocks
}

func buildTools(config *ai.ToolConfig) []anthropicTool {
	if config == nil || !config.WebSearch {
		return nil
	}
	maxUses := config.MaxUses
	if maxUses <= 0 {
		maxUses = defaultWebSearchMaxUses
	}
	return []anthropicTool{{Type: webSearchToolType, Name: "web_search", MaxUses: maxUses}}
}

// anthropicToGeneric maps a Messages reply onto the generic response. Text
// blocks are concatenated in order and their citations collected. A reply
// without any text block yields ai.ErrEmptyResponse.
func anthropicToGeneric(response anthropicResponse) (*ai.ChatResponse, error) {
	var text strings.Builder
	citations := []ai.Citation{}
	textBlocks := 0

	for _, block := range response.Content {
		if block.Type != "text" {
			continue
		}
		textBlocks++
		text.WriteString(block.Text)
		for _, citation := range block.Citations {
			citations = append(citations, citationToGeneric(citation))
		}
	}

	if textBlocks == 0 {
		return nil, ai.ErrEmptyResponse
	}

	return &ai.ChatResponse{
		ID:         response.ID,
		Provider:   ai.ProviderClaude,
		Model:      response.Model,
		Content:    text.String(),
		Citations:  citations,
		StopReason: response.StopReason,
		Usage: &ai.Usage{
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		},
	}, nil
}

func citationToGeneric(citation anthropicCitation) ai.Citation {
	return ai.Citation{
		Type:           citation.Type,
		URL:            citation.URL,
		Title:          citation.Title,
		CitedText:      citation.CitedText,
		EncryptedIndex: citation.EncryptedIndex,
	}
}
