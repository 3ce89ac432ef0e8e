package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/childreth/Olly/providers/ai"
)

// newTestProvider points a provider at the given test server.
func newTestProvider(server *httptest.Server) *AnthropicProvider {
	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithHttpClient(server.Client())
	return provider
}

// TestNew verifies that New() returns a provider with the default base URL.
func TestNew(t *testing.T) {
	t.Setenv("ANTHROPIC_API_BASE_URL", "")
	provider := New()
	if provider.baseURL != defaultBaseURL {
		t.Errorf("expected baseURL %q, got %q", defaultBaseURL, provider.baseURL)
	}
	if provider.Name() != ai.ProviderClaude || !provider.RequiresCredential() {
		t.Error("unexpected identity")
	}
}

// TestNew_BaseURLFromEnv verifies the environment override.
func TestNew_BaseURLFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_BASE_URL", "https://proxy.internal/v1")
	if provider := New(); provider.baseURL != "https://proxy.internal/v1" {
		t.Errorf("got %q", provider.baseURL)
	}
}

// TestSendMessage_Basic exercises the happy path: correct headers are sent,
// the request body carries defaults and the web search tool, and the reply is decoded.
func TestSendMessage_Basic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-abc" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization must not be set, got %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["max_tokens"] != float64(1024) {
			t.Errorf("max_tokens = %v", body["max_tokens"])
		}
		if body["temperature"] != float64(0) {
			t.Errorf("temperature = %v", body["temperature"])
		}
		tools, _ := body["tools"].([]any)
		if len(tools) != 1 {
			t.Fatalf("expected one tool, got %v", body["tools"])
		}
		tool := tools[0].(map[string]any)
		if tool["type"] != "web_search_20250305" || tool["name"] != "web_search" || tool["max_uses"] != float64(5) {
			t.Errorf("unexpected tool %v", tool)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","stop_reason":"end_turn",
			"content":[
				{"type":"server_tool_use","id":"srv_1","name":"web_search","input":{"query":"go"}},
				{"type":"text","text":"Go is ","citations":[{"type":"web_search_result_location","cited_text":"Go is","url":"https://go.dev","title":"Go","encrypted_index":"x"}]},
				{"type":"text","text":"great."}
			],
			"usage":{"input_tokens":12,"output_tokens":4}
		}`)
	}))
	defer server.Close()

	response, err := newTestProvider(server).SendMessage(context.Background(), "sk-abc", ai.ChatRequest{
		Prompt:     "What is Go?",
		ToolConfig: &ai.ToolConfig{WebSearch: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Content != "Go is great." {
		t.Errorf("content = %q", response.Content)
	}
	if len(response.Citations) != 1 || response.Citations[0].URL != "https://go.dev" {
		t.Errorf("citations = %+v", response.Citations)
	}
	if response.Usage == nil || response.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", response.Usage)
	}
}

// TestSendMessage_EmptyContent verifies an empty content array yields ErrEmptyResponse.
func TestSendMessage_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"m","usage":{}}`)
	}))
	defer server.Close()

	_, err := newTestProvider(server).SendMessage(context.Background(), "sk", ai.ChatRequest{Prompt: "hi"})
	if !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

// TestSendMessage_StatusClassification verifies 401 / 429 / other handling.
func TestSendMessage_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, ai.ErrAuthenticationFailed},
		{http.StatusTooManyRequests, ai.ErrRateLimited},
		{529, ai.ErrProviderStatus},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"type":"error","error":{"type":"x","message":"denied"}}`)
			}))
			defer server.Close()

			response, err := newTestProvider(server).SendMessage(context.Background(), "sk", ai.ChatRequest{Prompt: "hi"})
			if response != nil {
				t.Error("expected nil response")
			}
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

// TestOpenStream_ReturnsRawBody verifies the stream flag and raw passthrough.
func TestOpenStream_ReturnsRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != true {
			t.Errorf("expected stream=true, got %v", body["stream"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	body, err := newTestProvider(server).OpenStream(context.Background(), "sk", ai.ChatRequest{Prompt: "hi", Stream: true})
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "message_stop") {
		t.Errorf("unexpected body %q", data)
	}
}

// TestOpenStream_Unauthorized verifies a 401 surfaces before any bytes are read.
func TestOpenStream_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	body, err := newTestProvider(server).OpenStream(context.Background(), "bad", ai.ChatRequest{Prompt: "hi"})
	if body != nil || !errors.Is(err, ai.ErrAuthenticationFailed) {
		t.Fatalf("expected auth failure, got body=%v err=%v", body, err)
	}
}

// TestListModels_ParsesData verifies gjson extraction of ids and display names.
func TestListModels_ParsesData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.URL.Query().Get("limit") != "20" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `{"data":[{"id":"claude-opus-4-1","display_name":"Claude Opus 4.1"},{"id":"claude-haiku"}]}`)
	}))
	defer server.Close()

	models, err := newTestProvider(server).ListModels(context.Background(), "sk")
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0].Name != "Claude Opus 4.1" || models[1].Name != "claude-haiku" {
		t.Errorf("unexpected models %+v", models)
	}
}

// TestValidateKey covers accepted, rejected and failing keys.
func TestValidateKey(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()
	provider := newTestProvider(server)

	if ok, err := provider.ValidateKey(context.Background(), "sk"); !ok || err != nil {
		t.Errorf("expected valid, got %v %v", ok, err)
	}

	status.Store(http.StatusUnauthorized)
	if ok, err := provider.ValidateKey(context.Background(), "sk"); ok || err != nil {
		t.Errorf("expected invalid without error, got %v %v", ok, err)
	}

	status.Store(http.StatusInternalServerError)
	if ok, err := provider.ValidateKey(context.Background(), "sk"); ok || !errors.Is(err, ai.ErrProviderStatus) {
		t.Errorf("expected provider error, got %v %v", ok, err)
	}
}
