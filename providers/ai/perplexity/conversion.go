package perplexity

import (
	"github.com/childreth/Olly/providers/ai"
)

const (
	// DefaultModel is used when a request names no model.
	DefaultModel = "sonar"

	// DefaultTemperature matches the desktop client's conversational tone.
	DefaultTemperature = 0.7
)

// catalog is the static model list; Perplexity offers no listing endpoint.
var catalog = []ai.ModelInfo{
	{ID: "sonar-deep-research", Name: "Sonar Deep Research", Description: "Exhaustive multi-step research reports"},
	{ID: "sonar-reasoning-pro", Name: "Sonar Reasoning Pro", Description: "Chain-of-thought reasoning with search"},
	{ID: "sonar-reasoning", Name: "Sonar Reasoning", Description: "Fast reasoning with search"},
	{ID: "sonar-pro", Name: "Sonar Pro", Description: "Advanced search with more citations"},
	{ID: "sonar", Name: "Sonar", Description: "Lightweight search-augmented answers"},
}

func requestToPerplexity(request ai.ChatRequest) chatRequest {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	temperature := request.Temperature
	if temperature == nil {
		temperature = ai.Float64(DefaultTemperature)
	}

	messages := []chatMessage{}
	if request.System != "" {
		messages = append(messages, chatMessage{Role: string(ai.RoleSystem), Content: request.System})
	}
	for _, message := range request.Conversation() {
		messages = append(messages, chatMessage{Role: string(message.Role), Content: message.Content.PlainText()})
	}

	return chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   request.MaxTokens,
		Temperature: temperature,
		Stream:      request.Stream,
	}
}

// buildCitations turns the URL list into citations, borrowing titles from
// search results with the same URL.
func buildCitations(urls []string, results []searchResult) []ai.Citation {
	titles := make(map[string]string, len(results))
	for _, result := range results {
		titles[result.URL] = result.Title
	}

	citations := make([]ai.Citation, 0, len(urls))
	for _, url := range urls {
		if url == "" {
			continue
		}
		citations = append(citations, ai.Citation{Type: "url", URL: url, Title: titles[url]})
	}
	return citations
}

func perplexityToGeneric(response chatResponse) (*ai.ChatResponse, error) {
	if len(response.Choices) == 0 {
		return nil, ai.ErrEmptyResponse
	}

	choice := response.Choices[0]
	result := &ai.ChatResponse{
		ID:         response.ID,
		Provider:   ai.ProviderPerplexity,
		Model:      response.Model,
		Content:    choice.Message.Content,
		Citations:  buildCitations(response.Citations, response.SearchResults),
		StopReason: choice.FinishReason,
	}
	if response.Usage != nil {
		result.Usage = &ai.Usage{
			InputTokens:  response.Usage.PromptTokens,
			OutputTokens: response.Usage.CompletionTokens,
		}
	}
	return result, nil
}
