package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/childreth/Olly/providers/ai"
)

// Dialect decodes /api/chat NDJSON lines.
type Dialect struct{}

var _ ai.Dialect = Dialect{}

// Provider implements [ai.Dialect].
func (Dialect) Provider() ai.ProviderName {
	return ai.ProviderOllama
}

// SalvageMarkers implements [ai.Dialect].
func (Dialect) SalvageMarkers() []string {
	return []string{`"content":"`, `"content": "`}
}

// Decode implements [ai.Dialect]. Every line carries a done flag; the final
// line (done=true) becomes a message_stop lifecycle event with token counts.
// Server-side failures arrive as {"error": "..."} lines.
func (Dialect) Decode(payload string) ([]ai.Event, error) {
	var chunk chatChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedFrame, err)
	}

	if chunk.Error != "" {
		return []ai.Event{ai.Lifecycle(ai.LifecycleError, chunk.Error)}, nil
	}
	if chunk.Done == nil {
		return nil, fmt.Errorf("%w: line without done flag", ai.ErrMalformedFrame)
	}

	var events []ai.Event
	if chunk.Message != nil && chunk.Message.Content != "" {
		events = append(events, ai.TextDelta(chunk.Message.Content))
	}

	if *chunk.Done {
		stop := ai.Lifecycle(ai.LifecycleMessageStop, chunk.DoneReason)
		if chunk.PromptEvalCount > 0 || chunk.EvalCount > 0 {
			stop.Usage = &ai.Usage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount}
		}
		events = append(events, stop)
	}

	return events, nil
}
