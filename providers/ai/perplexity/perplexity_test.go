package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/childreth/Olly/providers/ai"
)

func newTestProvider(server *httptest.Server) *PerplexityProvider {
	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithHttpClient(server.Client())
	return provider
}

// TestSendMessage_Basic verifies Bearer auth, the flat message array and citation mapping.
func TestSendMessage_Basic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pplx-1" {
			t.Errorf("Authorization = %q", got)
		}

		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Model != "sonar" || body.Stream || *body.Temperature != 0.7 {
			t.Errorf("unexpected request %+v", body)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "news?" {
			t.Errorf("unexpected messages %+v", body.Messages)
		}

		fmt.Fprint(w, `{"id":"r1","model":"sonar","choices":[{"index":0,"message":{"role":"assistant","content":"All quiet."},"finish_reason":"stop"}],
			"citations":["https://a.example","https://b.example"],
			"search_results":[{"title":"A","url":"https://a.example"}],
			"usage":{"prompt_tokens":3,"completion_tokens":2}}`)
	}))
	defer server.Close()

	response, err := newTestProvider(server).SendMessage(context.Background(), "pplx-1", ai.ChatRequest{System: "Be concise.", Prompt: "news?"})
	if err != nil {
		t.Fatal(err)
	}
	if response.Content != "All quiet." || response.StopReason != "stop" {
		t.Errorf("unexpected response %+v", response)
	}
	if len(response.Citations) != 2 || response.Citations[0].Title != "A" || response.Citations[1].URL != "https://b.example" {
		t.Errorf("unexpected citations %+v", response.Citations)
	}
}

// TestSendMessage_EmptyChoices verifies ErrEmptyResponse.
func TestSendMessage_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"r1","choices":[]}`)
	}))
	defer server.Close()

	_, err := newTestProvider(server).SendMessage(context.Background(), "k", ai.ChatRequest{Prompt: "x"})
	if !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

// TestSendMessage_StatusClassification verifies 401 / 429 / other handling.
func TestSendMessage_StatusClassification(t *testing.T) {
	for status, kind := range map[int]error{
		http.StatusUnauthorized:       ai.ErrAuthenticationFailed,
		http.StatusTooManyRequests:    ai.ErrRateLimited,
		http.StatusBadRequest:         ai.ErrProviderStatus,
		http.StatusServiceUnavailable: ai.ErrProviderStatus,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := newTestProvider(server).SendMessage(context.Background(), "k", ai.ChatRequest{Prompt: "x"})
		if !errors.Is(err, kind) {
			t.Errorf("status %d: expected %v, got %v", status, kind, err)
		}
		server.Close()
	}
}

// TestListModels_StaticCatalog verifies the catalog order and provider tagging.
func TestListModels_StaticCatalog(t *testing.T) {
	models, err := New().ListModels(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 5 || models[0].ID != "sonar-deep-research" || models[4].ID != "sonar" {
		t.Errorf("unexpected catalog %+v", models)
	}
	for _, model := range models {
		if model.Provider != ai.ProviderPerplexity {
			t.Errorf("model %s not tagged with provider", model.ID)
		}
	}
}

// TestValidateKey_SendsOneTokenProbe verifies the probe request and the 401 mapping.
func TestValidateKey_SendsOneTokenProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.MaxTokens != 1 || body.Model != "sonar" {
			t.Errorf("unexpected probe %+v", body)
		}
		if r.Header.Get("Authorization") == "Bearer good" {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"p"}}]}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	provider := newTestProvider(server)

	if ok, err := provider.ValidateKey(context.Background(), "good"); !ok || err != nil {
		t.Errorf("expected valid key, got %v %v", ok, err)
	}
	if ok, err := provider.ValidateKey(context.Background(), "bad"); ok || err != nil {
		t.Errorf("expected rejected key, got %v %v", ok, err)
	}
}
