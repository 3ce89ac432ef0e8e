package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/childreth/Olly/core/resolver"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/ai/anthropic"
	"github.com/childreth/Olly/providers/ai/ollama"
	"github.com/childreth/Olly/providers/ai/perplexity"
	"github.com/childreth/Olly/providers/credentials"
)

// newTestResolver builds a resolver over a temporary application directory
// with the keyring disabled and no credentials in the environment.
func newTestResolver(t *testing.T, secrets map[ai.ProviderName]string) *resolver.Resolver {
	t.Helper()
	keyring.MockInitWithError(errors.New("keyring disabled in tests"))
	t.Setenv("CLAUDE_API_KEY", "")
	t.Setenv("PERPLEXITY_API_KEY", "")

	appDir := t.TempDir()
	store := credentials.NewStore(filepath.Join(appDir, "keys"))
	for provider, secret := range secrets {
		if err := store.Store(context.Background(), provider, secret); err != nil {
			t.Fatalf("store %s: %v", provider, err)
		}
	}
	return resolver.New(store, credentials.NewLegacyFileTier(filepath.Join(appDir, "config.env")))
}

var testSecrets = map[ai.ProviderName]string{
	ai.ProviderClaude:     "sk-claude",
	ai.ProviderPerplexity: "pplx-key",
}

// writeSSE writes body in small flushed pieces so the client sees chunk
// boundaries inside lines and JSON tokens.
func writeSSE(t *testing.T, w http.ResponseWriter, body string, pieceSize int) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("response writer cannot flush")
	}
	for start := 0; start < len(body); start += pieceSize {
		end := min(start+pieceSize, len(body))
		_, _ = w.Write([]byte(body[start:end]))
		flusher.Flush()
	}
}

func claudeSSE(words ...string) string {
	var b strings.Builder
	b.WriteString("event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-sonnet-4-5\",\"usage\":{\"input_tokens\":5,\"output_tokens\":1}}}\n\n")
	b.WriteString("event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n")
	for _, word := range words {
		fmt.Fprintf(&b, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", word)
	}
	b.WriteString("event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n")
	b.WriteString("event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":9}}\n\n")
	b.WriteString("event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	return b.String()
}

func perplexitySSE(words ...string) string {
	var b strings.Builder
	for i, word := range words {
		if i == len(words)-1 {
			fmt.Fprintf(&b, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":\"stop\"}],\"citations\":[\"https://example.com/a\"]}\n\n", word)
			continue
		}
		fmt.Fprintf(&b, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", word)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func claudeServer(t *testing.T, handler http.HandlerFunc) ai.Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return anthropic.New().WithBaseURL(server.URL).WithHttpClient(server.Client())
}

func perplexityServer(t *testing.T, handler http.HandlerFunc) ai.Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return perplexity.New().WithBaseURL(server.URL).WithHttpClient(server.Client())
}

func TestCompletion_Claude_ShapesRequest(t *testing.T) {
	provider := claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "sk-claude" {
			t.Errorf("x-api-key = %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		messages, _ := body["messages"].([]any)
		if len(messages) != 1 {
			t.Errorf("expected the prompt as one message, got %v", body["messages"])
		}
		if tools, _ := body["tools"].([]any); len(tools) != 1 {
			t.Errorf("expected the web search tool by default, got %v", body["tools"])
		}
		if body["stream"] == true {
			t.Error("synchronous call must not stream")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"Hello"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`))
	})

	gw := New(newTestResolver(t, testSecrets), WithProvider(provider))
	response, err := gw.Completion(context.Background(), ai.ChatRequest{Provider: "Anthropic", Prompt: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Content != "Hello" || response.Provider != ai.ProviderClaude {
		t.Errorf("unexpected response %+v", response)
	}
}

func TestCompletion_WebSearchDisabled_NoTools(t *testing.T) {
	provider := claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, present := body["tools"]; present {
			t.Errorf("tools must be omitted, got %v", body["tools"])
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	})

	gw := New(newTestResolver(t, testSecrets), WithProvider(provider), WithWebSearch(false))
	if _, err := gw.Completion(context.Background(), ai.ChatRequest{Provider: ai.ProviderClaude, Prompt: "Hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompletion_MissingCredential_NoRequestSent(t *testing.T) {
	var hits atomic.Int32
	provider := claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	gw := New(newTestResolver(t, nil), WithProvider(provider))
	_, err := gw.Completion(context.Background(), ai.ChatRequest{Provider: ai.ProviderClaude, Prompt: "Hi"})

	var notFound *ai.CredentialNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected CredentialNotFoundError, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("no request may be sent without a credential, got %d", hits.Load())
	}
}

func TestCompletion_Unauthorized_AllProviders(t *testing.T) {
	unauthorized := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid x-api-key"}}`))
	}
	gw := New(newTestResolver(t, testSecrets),
		WithProvider(claudeServer(t, unauthorized)),
		WithProvider(perplexityServer(t, unauthorized)),
	)

	for _, provider := range []ai.ProviderName{ai.ProviderClaude, ai.ProviderPerplexity} {
		t.Run(provider.String(), func(t *testing.T) {
			response, err := gw.Completion(context.Background(), ai.ChatRequest{Provider: provider, Prompt: "Hi"})
			if !errors.Is(err, ai.ErrAuthenticationFailed) {
				t.Fatalf("expected authentication failure, got %v", err)
			}
			if response != nil {
				t.Errorf("no response may accompany a 401, got %+v", response)
			}

			_, err = gw.StreamCompletion(context.Background(), ai.ChatRequest{Provider: provider, Prompt: "Hi"})
			if !errors.Is(err, ai.ErrAuthenticationFailed) {
				t.Fatalf("expected authentication failure when streaming, got %v", err)
			}
		})
	}
}

func TestCompletion_UnsupportedProvider(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets))
	_, err := gw.Completion(context.Background(), ai.ChatRequest{Provider: "gemini", Prompt: "Hi"})
	if !errors.Is(err, ai.ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
}

func TestCompletion_EmptyRequest(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets))
	if _, err := gw.Completion(context.Background(), ai.ChatRequest{Provider: ai.ProviderClaude}); err == nil {
		t.Fatal("expected an error for a request without messages")
	}
}

func TestStreamCompletion_ConcurrentProviders_Independent(t *testing.T) {
	claudeWords := []string{"Claude ", "says ", "héllo ", "🌍"}
	perplexityWords := []string{"Perplexity ", "found ", "the ", "answer."}

	gw := New(newTestResolver(t, testSecrets),
		WithProvider(claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, claudeSSE(claudeWords...), 7)
		})),
		WithProvider(perplexityServer(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer pplx-key" {
				t.Errorf("Authorization = %q", got)
			}
			writeSSE(t, w, perplexitySSE(perplexityWords...), 5)
		})),
	)

	want := map[ai.ProviderName]string{
		ai.ProviderClaude:     strings.Join(claudeWords, ""),
		ai.ProviderPerplexity: strings.Join(perplexityWords, ""),
	}

	const rounds = 4
	var wg sync.WaitGroup
	errs := make(chan error, rounds*len(want))
	for i := 0; i < rounds; i++ {
		for provider, text := range want {
			wg.Add(1)
			go func() {
				defer wg.Done()
				chatStream, err := gw.StreamCompletion(context.Background(), ai.ChatRequest{Provider: provider, Prompt: "Hi"})
				if err != nil {
					errs <- fmt.Errorf("%s: %w", provider, err)
					return
				}
				response, err := chatStream.Collect()
				if err != nil {
					errs <- fmt.Errorf("%s: %w", provider, err)
					return
				}
				if response.Content != text {
					errs <- fmt.Errorf("%s: text %q, want %q", provider, response.Content, text)
				}
			}()
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestStreamCompletion_EventOrder(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets),
		WithProvider(claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, claudeSSE("Hi"), 3)
		})),
	)

	chatStream, err := gw.StreamCompletion(context.Background(), ai.ChatRequest{Provider: ai.ProviderClaude, Prompt: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var types []string
	for event, err := range chatStream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		switch event.Type {
		case ai.EventLifecycle:
			types = append(types, string(event.Lifecycle))
		default:
			types = append(types, string(event.Type))
		}
	}

	want := "message_start,content_block_start,text_delta,content_block_stop,message_delta,message_stop,done"
	if got := strings.Join(types, ","); got != want {
		t.Errorf("event order\n got %s\nwant %s", got, want)
	}
}

func TestStreamCompletionTo_FailingSink_StillCompletes(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets),
		WithProvider(perplexityServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, perplexitySSE("a", "b", "c"), 4)
		})),
	)

	var calls int
	sink := SinkFunc(func(context.Context, ai.Event) error {
		calls++
		return errors.New("recipient went away")
	})

	response, err := gw.StreamCompletionTo(context.Background(), ai.ChatRequest{Provider: ai.ProviderPerplexity, Prompt: "Hi"}, sink)
	if err != nil {
		t.Fatalf("a failing sink must not fail the call: %v", err)
	}
	if response.Content != "abc" || len(response.Citations) != 1 {
		t.Errorf("unexpected response %+v", response)
	}
	// Three deltas, one citation, one Done.
	if calls != 5 {
		t.Errorf("expected every event to be offered to the sink, got %d calls", calls)
	}
}

func TestStreamCompletionTo_ChannelSink(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets),
		WithProvider(claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, claudeSSE("one ", "two"), 11)
		})),
	)

	events := make(chan ai.Event, 16)
	response, err := gw.StreamCompletionTo(context.Background(), ai.ChatRequest{Provider: ai.ProviderClaude, Prompt: "Hi"}, ChannelSink(events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(events)

	var received []ai.Event
	for event := range events {
		received = append(received, event)
	}
	if len(received) != 3 || received[0].Text != "one " || received[1].Text != "two" || !received[2].IsDone() {
		t.Errorf("unexpected forwarded events %+v", received)
	}
	if received[2].Text != "one two" || response.Content != "one two" || response.StopReason != "end_turn" {
		t.Errorf("unexpected completion %+v / %+v", received[2], response)
	}
}

func TestStreamCompletionTo_UnreadChannel_BoundedByStreamTimeout(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets),
		WithTimeouts(time.Second, 200*time.Millisecond),
		WithProvider(perplexityServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, perplexitySSE("a", "b", "c"), 8)
		})),
	)

	finished := make(chan *ai.ChatResponse, 1)
	go func() {
		response, _ := gw.StreamCompletionTo(context.Background(), ai.ChatRequest{Provider: ai.ProviderPerplexity, Prompt: "Hi"}, ChannelSink(make(chan ai.Event)))
		finished <- response
	}()

	select {
	case response := <-finished:
		if response == nil {
			t.Error("expected the collected response")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("a sink nobody reads kept the session open past the stream timeout")
	}
}

func TestStreamCompletion_StreamTimeout_NoDone(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets),
		WithTimeouts(time.Second, 100*time.Millisecond),
		WithProvider(claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n", 64)
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})),
	)

	chatStream, err := gw.StreamCompletion(context.Background(), ai.ChatRequest{Provider: ai.ProviderClaude, Prompt: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	response, err := chatStream.Collect()
	if !errors.Is(err, ai.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if response.Content != "partial" {
		t.Errorf("partial text = %q", response.Content)
	}
}

func TestStreamCompletion_Ollama_NoCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"local"},"done":false}` + "\n" +
			`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}` + "\n"))
	}))
	defer server.Close()

	gw := New(newTestResolver(t, nil), WithProvider(ollama.New().WithBaseURL(server.URL).WithHttpClient(server.Client())))
	chatStream, err := gw.StreamCompletion(context.Background(), ai.ChatRequest{Provider: ai.ProviderOllama, Prompt: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	response, err := chatStream.Collect()
	if err != nil || response.Content != "local" {
		t.Fatalf("unexpected result %+v, %v", response, err)
	}
}

func TestListAllModels_ToleratesFailingProvider(t *testing.T) {
	downServer := httptest.NewServer(http.NotFoundHandler())
	downURL := downServer.URL
	downServer.Close()

	gw := New(newTestResolver(t, map[ai.ProviderName]string{ai.ProviderPerplexity: "pplx-key"}),
		WithProvider(ollama.New().WithBaseURL(downURL)),
	)

	models, err := gw.ListAllModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("expected the perplexity catalog")
	}
	for _, model := range models {
		if model.Provider != ai.ProviderPerplexity {
			t.Errorf("unexpected model from %s", model.Provider)
		}
	}
}

func TestValidateCredential_RejectedKey(t *testing.T) {
	gw := New(newTestResolver(t, testSecrets),
		WithProvider(claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") == "sk-good" {
				_, _ = w.Write([]byte(`{"data":[]}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		})),
	)

	valid, err := gw.ValidateCredential(context.Background(), ai.ProviderClaude, "sk-bad")
	if err != nil || valid {
		t.Errorf("expected rejection without error, got %v, %v", valid, err)
	}
	valid, err = gw.ValidateCredential(context.Background(), ai.ProviderClaude, "sk-good")
	if err != nil || !valid {
		t.Errorf("expected acceptance, got %v, %v", valid, err)
	}
}

func TestCredentialOperations(t *testing.T) {
	gw := New(newTestResolver(t, nil))
	ctx := context.Background()

	if err := gw.StoreCredential(ctx, ai.ProviderPerplexity, "pplx-new"); err != nil {
		t.Fatalf("store: %v", err)
	}
	secret, err := gw.ResolveCredential(ctx, ai.ProviderPerplexity)
	if err != nil || secret != "pplx-new" {
		t.Fatalf("resolve: %q, %v", secret, err)
	}

	providers, err := gw.ListProviders(ctx)
	if err != nil || len(providers) != 1 || providers[0] != ai.ProviderPerplexity {
		t.Fatalf("list: %v, %v", providers, err)
	}

	info, err := gw.ProviderInfo(ctx, ai.ProviderPerplexity)
	if err != nil || info.DisplayName != "Perplexity API" || info.LastUsed == nil {
		t.Fatalf("info: %+v, %v", info, err)
	}

	if err := gw.DeleteCredential(ctx, ai.ProviderPerplexity); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := gw.ResolveCredential(ctx, ai.ProviderPerplexity); !errors.Is(err, ai.ErrCredentialNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMigrateLegacy_ThroughGateway(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring disabled in tests"))
	appDir := t.TempDir()
	legacyPath := filepath.Join(appDir, "config.env")
	if err := os.WriteFile(legacyPath, []byte("CLAUDE_API_KEY=sk-abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := credentials.NewStore(filepath.Join(appDir, "keys"))
	gw := New(resolver.New(store, credentials.NewLegacyFileTier(legacyPath)))

	report, err := gw.MigrateLegacy(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Message != "Migrated 1 API key(s) to secure storage: Claude" {
		t.Errorf("message = %q", report.Message)
	}
}
