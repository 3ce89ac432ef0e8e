package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/childreth/Olly/providers/ai"
)

// Dialect decodes Messages API stream payloads.
type Dialect struct{}

var _ ai.Dialect = Dialect{}

// Provider implements [ai.Dialect].
func (Dialect) Provider() ai.ProviderName {
	return ai.ProviderClaude
}

// SalvageMarkers implements [ai.Dialect]. Text deltas carry their fragment
// under "text".
func (Dialect) SalvageMarkers() []string {
	return []string{`"text":"`, `"text": "`}
}

// Decode implements [ai.Dialect]. Each known event type must carry the fields
// its variant requires; unknown event types are accepted and produce nothing,
// so new server events do not trigger salvage.
func (Dialect) Decode(payload string) ([]ai.Event, error) {
	var event streamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedFrame, err)
	}

	switch event.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type field", ai.ErrMalformedFrame)

	case "message_start":
		if event.Message == nil {
			return nil, missingField(event.Type, "message")
		}
		start := ai.Lifecycle(ai.LifecycleMessageStart)
		if event.Message.Usage.InputTokens > 0 {
			start.Usage = &ai.Usage{InputTokens: event.Message.Usage.InputTokens}
		}
		return []ai.Event{start}, nil

	case "content_block_start":
		if event.Index == nil {
			return nil, missingField(event.Type, "index")
		}
		if event.ContentBlock == nil {
			return nil, missingField(event.Type, "content_block")
		}
		return []ai.Event{ai.Lifecycle(ai.LifecycleContentBlockStart, event.ContentBlock.Type)}, nil

	case "content_block_delta":
		if event.Index == nil {
			return nil, missingField(event.Type, "index")
		}
		if len(event.Delta) == 0 {
			return nil, missingField(event.Type, "delta")
		}
		return decodeBlockDelta(event.Delta)

	case "content_block_stop":
		if event.Index == nil {
			return nil, missingField(event.Type, "index")
		}
		return []ai.Event{ai.Lifecycle(ai.LifecycleContentBlockStop)}, nil

	case "message_delta":
		if len(event.Delta) == 0 {
			return nil, missingField(event.Type, "delta")
		}
		var delta messageDelta
		if err := json.Unmarshal(event.Delta, &delta); err != nil {
			return nil, fmt.Errorf("%w: message_delta: %v", ai.ErrMalformedFrame, err)
		}
		lifecycle := ai.Lifecycle(ai.LifecycleMessageDelta, delta.StopReason)
		if event.Usage != nil {
			lifecycle.Usage = &ai.Usage{OutputTokens: event.Usage.OutputTokens}
		}
		return []ai.Event{lifecycle}, nil

	case "message_stop":
		return []ai.Event{ai.Lifecycle(ai.LifecycleMessageStop)}, nil

	case "ping":
		return []ai.Event{ai.Lifecycle(ai.LifecyclePing)}, nil

	case "error":
		message := "unknown stream error"
		if event.Error != nil && event.Error.Message != "" {
			message = event.Error.Message
		}
		return []ai.Event{ai.Lifecycle(ai.LifecycleError, message)}, nil

	default:
		return nil, nil
	}
}

func decodeBlockDelta(raw json.RawMessage) ([]ai.Event, error) {
	var delta blockDelta
	if err := json.Unmarshal(raw, &delta); err != nil {
		return nil, fmt.Errorf("%w: content_block_delta: %v", ai.ErrMalformedFrame, err)
	}

	switch delta.Type {
	case "text_delta":
		if delta.Text == nil {
			return nil, missingField("text_delta", "text")
		}
		if *delta.Text == "" {
			return nil, nil
		}
		return []ai.Event{ai.TextDelta(*delta.Text)}, nil

	case "citations_delta":
		if delta.Citation == nil {
			return nil, missingField("citations_delta", "citation")
		}
		return []ai.Event{ai.CitationEvent(citationToGeneric(*delta.Citation))}, nil

	case "":
		return nil, missingField("content_block_delta", "delta.type")

	default:
		// input_json_delta, thinking_delta and future delta kinds carry no answer text.
		return nil, nil
	}
}

func missingField(eventType, field string) error {
	return fmt.Errorf("%w: %s without %s", ai.ErrMalformedFrame, eventType, field)
}
