package perplexity

import (
	"encoding/json"
	"fmt"

	"github.com/childreth/Olly/providers/ai"
)

// Dialect decodes chat completion stream chunks.
type Dialect struct{}

var _ ai.Dialect = Dialect{}

// Provider implements [ai.Dialect].
func (Dialect) Provider() ai.ProviderName {
	return ai.ProviderPerplexity
}

// SalvageMarkers implements [ai.Dialect]. Deltas carry text under "content".
func (Dialect) SalvageMarkers() []string {
	return []string{`"content":"`, `"content": "`}
}

// Decode implements [ai.Dialect]. A chunk must carry a choices array whose
// entries each have a delta. Text deltas come first, in choice order, then
// one citation event per listed URL, then a message_delta lifecycle event
// when a choice reports its finish reason.
func (Dialect) Decode(payload string) ([]ai.Event, error) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedFrame, err)
	}
	if chunk.Choices == nil {
		return nil, fmt.Errorf("%w: chunk without choices", ai.ErrMalformedFrame)
	}

	var events []ai.Event
	finishReason := ""

	for _, choice := range *chunk.Choices {
		if choice.Delta == nil {
			return nil, fmt.Errorf("%w: choice %d without delta", ai.ErrMalformedFrame, choice.Index)
		}
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			events = append(events, ai.TextDelta(*choice.Delta.Content))
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}
	}

	for _, citation := range buildCitations(chunk.Citations, chunk.SearchResults) {
		events = append(events, ai.CitationEvent(citation))
	}

	if finishReason != "" || chunk.Usage != nil {
		lifecycle := ai.Lifecycle(ai.LifecycleMessageDelta, finishReason)
		if chunk.Usage != nil {
			lifecycle.Usage = &ai.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			}
		}
		events = append(events, lifecycle)
	}

	return events, nil
}
