package ai

import (
	"encoding/json"
	"testing"
)

func TestCanonicalProvider(t *testing.T) {
	tests := map[string]ProviderName{
		"Claude":       ProviderClaude,
		" PERPLEXITY ": ProviderPerplexity,
		"anthropic":    ProviderClaude,
		"ollama":       ProviderOllama,
		"Mistral":      "mistral",
	}
	for input, want := range tests {
		if got := CanonicalProvider(input); got != want {
			t.Errorf("CanonicalProvider(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestProviderName_EnvVarAndDisplayName(t *testing.T) {
	if got := ProviderPerplexity.EnvVar(); got != "PERPLEXITY_API_KEY" {
		t.Errorf("EnvVar = %q", got)
	}
	if got := ProviderClaude.DisplayName(); got != "Claude API" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestMessageContent_MarshalTextAsString(t *testing.T) {
	data, err := json.Marshal(Message{Role: RoleUser, Content: TextContent("hi")})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"role":"user","content":"hi"}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestMessageContent_MarshalBlocksAsArray(t *testing.T) {
	content := BlockContent(
		ContentBlock{Type: ContentText, Text: "what is this?"},
		ContentBlock{Type: ContentImage, Source: &ImageSource{Type: "base64", MediaType: "image/png", Data: "AAAA"}},
	)
	data, err := json.Marshal(content)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"type":"text","text":"what is this?"},{"type":"image","source":{"type":"base64","media_type":"image/png","data":"AAAA"}}]`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}

func TestMessageContent_UnmarshalEitherShape(t *testing.T) {
	var message Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`), &message); err != nil {
		t.Fatal(err)
	}
	if !message.Content.IsBlocks() || message.Content.PlainText() != "a\nb" {
		t.Errorf("unexpected content %+v", message.Content)
	}

	if err := json.Unmarshal([]byte(`{"role":"user","content":"plain"}`), &message); err != nil {
		t.Fatal(err)
	}
	if message.Content.IsBlocks() || message.Content.PlainText() != "plain" {
		t.Errorf("unexpected content %+v", message.Content)
	}

	if err := json.Unmarshal([]byte(`{"role":"user","content":42}`), &message); err == nil {
		t.Error("expected error for numeric content")
	}
}

func TestChatRequest_ConversationSynthesizesPrompt(t *testing.T) {
	request := ChatRequest{Prompt: "hello"}
	messages := request.Conversation()
	if len(messages) != 1 || messages[0].Role != RoleUser || messages[0].Content.Text != "hello" {
		t.Errorf("unexpected conversation %+v", messages)
	}

	request.Messages = []Message{{Role: RoleUser, Content: TextContent("explicit")}}
	if got := request.Conversation(); got[0].Content.Text != "explicit" {
		t.Errorf("explicit messages must win, got %+v", got)
	}
}

func TestDone_NilCitationsBecomeEmpty(t *testing.T) {
	event := Done("x", nil)
	if event.Citations == nil || len(event.Citations) != 0 {
		t.Errorf("expected empty non-nil citations, got %#v", event.Citations)
	}
}
