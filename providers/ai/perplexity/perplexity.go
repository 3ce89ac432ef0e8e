package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

const (
	// defaultBaseURL is the Perplexity API root.
	defaultBaseURL = "https://api.perplexity.ai"

	// completionsEndpoint is the OpenAI-compatible chat completions path.
	completionsEndpoint = "/chat/completions"
)

// PerplexityProvider implements [ai.Provider] for Perplexity.
type PerplexityProvider struct {
	baseURL string
	client  *http.Client
}

var _ ai.Provider = (*PerplexityProvider)(nil)

// New returns a [PerplexityProvider] whose base URL comes from
// PERPLEXITY_API_BASE_URL, defaulting to https://api.perplexity.ai.
func New() *PerplexityProvider {
	return &PerplexityProvider{
		baseURL: ai.EnvOr("PERPLEXITY_API_BASE_URL", defaultBaseURL),
		client:  &http.Client{},
	}
}

// Name implements [ai.Provider].
func (p *PerplexityProvider) Name() ai.ProviderName {
	return ai.ProviderPerplexity
}

// Dialect implements [ai.Provider].
func (p *PerplexityProvider) Dialect() ai.Dialect {
	return Dialect{}
}

// RequiresCredential implements [ai.Provider].
func (p *PerplexityProvider) RequiresCredential() bool {
	return true
}

// WithBaseURL overrides the API base URL.
func (p *PerplexityProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient sets the HTTP client used for outbound requests.
func (p *PerplexityProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

func (p *PerplexityProvider) annotate(ctx context.Context, model string, streaming bool) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, ai.ProviderPerplexity.String()),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
}

// SendMessage implements [ai.Provider]. A reply without choices yields
// ai.ErrEmptyResponse.
func (p *PerplexityProvider) SendMessage(ctx context.Context, secret string, request ai.ChatRequest) (*ai.ChatResponse, error) {
	chatReq := requestToPerplexity(request)
	chatReq.Stream = false
	p.annotate(ctx, chatReq.Model, false)

	body, err := utils.DoPostSync(ctx, p.client, ai.ProviderPerplexity, p.baseURL+completionsEndpoint, secret, chatReq)
	if err != nil {
		return nil, err
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error decoding Perplexity response: %w (preview: %s)", err, utils.TruncateString(string(body), 200))
	}

	result, err := perplexityToGeneric(response)
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	if result.Model == "" {
		result.Model = chatReq.Model
	}
	return result, nil
}

// OpenStream implements [ai.Provider].
func (p *PerplexityProvider) OpenStream(ctx context.Context, secret string, request ai.ChatRequest) (io.ReadCloser, error) {
	chatReq := requestToPerplexity(request)
	chatReq.Stream = true
	p.annotate(ctx, chatReq.Model, true)

	response, err := utils.DoPostStream(ctx, p.client, ai.ProviderPerplexity, p.baseURL+completionsEndpoint, secret, "text/event-stream", chatReq)
	if err != nil {
		return nil, err
	}
	return response.Body, nil
}

// ListModels implements [ai.Provider] from the static catalog.
func (p *PerplexityProvider) ListModels(context.Context, string) ([]ai.ModelInfo, error) {
	models := make([]ai.ModelInfo, len(catalog))
	for i, model := range catalog {
		model.Provider = ai.ProviderPerplexity
		models[i] = model
	}
	return models, nil
}

// ValidateKey implements [ai.Provider] with a one-token completion.
func (p *PerplexityProvider) ValidateKey(ctx context.Context, secret string) (bool, error) {
	probe := chatRequest{
		Model:     DefaultModel,
		Messages:  []chatMessage{{Role: string(ai.RoleUser), Content: "ping"}},
		MaxTokens: 1,
	}

	_, err := utils.DoPostSync(ctx, p.client, ai.ProviderPerplexity, p.baseURL+completionsEndpoint, secret, probe)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ai.ErrAuthenticationFailed):
		return false, nil
	default:
		return false, err
	}
}
