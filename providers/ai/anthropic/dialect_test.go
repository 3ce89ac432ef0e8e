package anthropic

import (
	"errors"
	"testing"

	"github.com/childreth/Olly/providers/ai"
)

func TestDialect_Decode_Variants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []ai.Event
	}{
		{
			name:    "text delta",
			payload: `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`,
			want:    []ai.Event{ai.TextDelta("Hi")},
		},
		{
			name:    "message stop",
			payload: `{"type":"message_stop"}`,
			want:    []ai.Event{ai.Lifecycle(ai.LifecycleMessageStop)},
		},
		{
			name:    "ping",
			payload: `{"type":"ping"}`,
			want:    []ai.Event{ai.Lifecycle(ai.LifecyclePing)},
		},
		{
			name:    "block start",
			payload: `{"type":"content_block_start","index":1,"content_block":{"type":"web_search_tool_result"}}`,
			want:    []ai.Event{ai.Lifecycle(ai.LifecycleContentBlockStart, "web_search_tool_result")},
		},
		{
			name:    "block stop",
			payload: `{"type":"content_block_stop","index":0}`,
			want:    []ai.Event{ai.Lifecycle(ai.LifecycleContentBlockStop)},
		},
		{
			name:    "input json delta ignored",
			payload: `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q"}}`,
			want:    nil,
		},
		{
			name:    "unknown event ignored",
			payload: `{"type":"future_event","x":1}`,
			want:    nil,
		},
		{
			name:    "error frame",
			payload: `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			want:    []ai.Event{ai.Lifecycle(ai.LifecycleError, "Overloaded")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Dialect{}.Decode(tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("expected %d events, got %d (%+v)", len(tt.want), len(events), events)
			}
			for i := range events {
				if events[i].Type != tt.want[i].Type || events[i].Text != tt.want[i].Text ||
					events[i].Lifecycle != tt.want[i].Lifecycle || events[i].Detail != tt.want[i].Detail {
					t.Errorf("event %d = %+v, want %+v", i, events[i], tt.want[i])
				}
			}
		})
	}
}

func TestDialect_Decode_CitationDelta(t *testing.T) {
	events, err := Dialect{}.Decode(`{"type":"content_block_delta","index":2,"delta":{"type":"citations_delta","citation":{"type":"web_search_result_location","cited_text":"c","url":"https://u","title":"T","encrypted_index":"e"}}}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != ai.EventCitation || events[0].Citation.URL != "https://u" || events[0].Citation.Title != "T" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestDialect_Decode_UsageOnStartAndDelta(t *testing.T) {
	start, err := Dialect{}.Decode(`{"type":"message_start","message":{"id":"m","type":"message","role":"assistant","content":[],"model":"x","usage":{"input_tokens":9,"output_tokens":1}}}`)
	if err != nil || start[0].Usage == nil || start[0].Usage.InputTokens != 9 {
		t.Fatalf("unexpected start %+v %v", start, err)
	}

	delta, err := Dialect{}.Decode(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":7}}`)
	if err != nil || delta[0].Detail != "end_turn" || delta[0].Usage.OutputTokens != 7 {
		t.Fatalf("unexpected delta %+v %v", delta, err)
	}
}

func TestDialect_Decode_MalformedFrames(t *testing.T) {
	payloads := []string{
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel`,
		`{"index":0}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"x"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"citations_delta"}}`,
		`{"type":"message_start"}`,
		`{"type":"content_block_delta","index":"zero","delta":{}}`,
	}

	for _, payload := range payloads {
		if _, err := (Dialect{}).Decode(payload); !errors.Is(err, ai.ErrMalformedFrame) {
			t.Errorf("Decode(%s) error = %v, want ErrMalformedFrame", payload, err)
		}
	}
}
