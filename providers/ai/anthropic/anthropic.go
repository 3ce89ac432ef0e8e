package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

const (
	// defaultBaseURL is the canonical base URL for Anthropic's Messages API.
	defaultBaseURL = "https://api.anthropic.com/v1"

	// messagesEndpoint is the path for the Messages API endpoint.
	messagesEndpoint = "/messages"

	// modelsEndpoint lists available models; it doubles as the cheapest
	// authenticated call for key validation.
	modelsEndpoint = "/models"

	// defaultVersion is the anthropic-version header value.
	// Anthropic uses this to version-lock response formats independently of the URL.
	defaultVersion = "2023-06-01"
)

// AnthropicProvider implements [ai.Provider] for Anthropic's Messages API.
// Use [New] to construct a ready-to-use instance.
type AnthropicProvider struct {
	baseURL string
	version string
	client  *http.Client
}

var _ ai.Provider = (*AnthropicProvider)(nil)

// New returns an [AnthropicProvider] whose base URL comes from
// ANTHROPIC_API_BASE_URL, defaulting to https://api.anthropic.com/v1.
func New() *AnthropicProvider {
	return &AnthropicProvider{
		baseURL: ai.EnvOr("ANTHROPIC_API_BASE_URL", defaultBaseURL),
		version: defaultVersion,
		client:  &http.Client{},
	}
}

// Name implements [ai.Provider].
func (p *AnthropicProvider) Name() ai.ProviderName {
	return ai.ProviderClaude
}

// Dialect implements [ai.Provider].
func (p *AnthropicProvider) Dialect() ai.Dialect {
	return Dialect{}
}

// RequiresCredential implements [ai.Provider].
func (p *AnthropicProvider) RequiresCredential() bool {
	return true
}

// WithBaseURL overrides the API base URL and returns the provider so calls can
// be chained. Use this when targeting a proxy or local testing endpoint.
func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient replaces the default [http.Client] used for API calls and
// returns the provider so calls can be chained.
func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithVersion overrides the anthropic-version header.
func (p *AnthropicProvider) WithVersion(version string) *AnthropicProvider {
	if version != "" {
		p.version = version
	}
	return p
}

// buildHeaders constructs the headers required for every Anthropic request.
// x-api-key carries the credential (Anthropic does not use Bearer tokens) and
// anthropic-version pins the wire format.
func (p *AnthropicProvider) buildHeaders(secret string) []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: secret},
		{Key: "anthropic-version", Value: p.version},
	}
}

func (p *AnthropicProvider) annotate(ctx context.Context, model string, streaming bool) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, ai.ProviderClaude.String()),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
}

// SendMessage implements [ai.Provider] by sending a synchronous request to the
// Messages API. The reply's text blocks are concatenated; a reply with no text
// yields ai.ErrEmptyResponse.
func (p *AnthropicProvider) SendMessage(ctx context.Context, secret string, request ai.ChatRequest) (*ai.ChatResponse, error) {
	anthropicReq := requestToAnthropic(request)
	anthropicReq.Stream = false
	p.annotate(ctx, anthropicReq.Model, false)

	// Pass empty apiKey so DoPostSync does not inject a Bearer token;
	// Anthropic authenticates via x-api-key instead.
	body, err := utils.DoPostSync(ctx, p.client, ai.ProviderClaude, p.baseURL+messagesEndpoint, "", anthropicReq, p.buildHeaders(secret)...)
	if err != nil {
		return nil, err
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error decoding Anthropic response: %w (preview: %s)", err, utils.TruncateString(string(body), 200))
	}

	result, err := anthropicToGeneric(response)
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}
	if result.Model == "" {
		result.Model = anthropicReq.Model
	}

	if span := observability.SpanFromContext(ctx); span != nil && result.Usage != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMStopReason, result.StopReason),
			observability.Int(observability.AttrLLMTokensInput, result.Usage.InputTokens),
			observability.Int(observability.AttrLLMTokensOutput, result.Usage.OutputTokens),
		)
	}

	return result, nil
}

// OpenStream implements [ai.Provider]. The returned body carries the raw SSE
// stream for the normalizer.
func (p *AnthropicProvider) OpenStream(ctx context.Context, secret string, request ai.ChatRequest) (io.ReadCloser, error) {
	anthropicReq := requestToAnthropic(request)
	anthropicReq.Stream = true
	p.annotate(ctx, anthropicReq.Model, true)

	response, err := utils.DoPostStream(ctx, p.client, ai.ProviderClaude, p.baseURL+messagesEndpoint, "", "text/event-stream", anthropicReq, p.buildHeaders(secret)...)
	if err != nil {
		return nil, err
	}
	return response.Body, nil
}

// ListModels implements [ai.Provider] using the models endpoint.
func (p *AnthropicProvider) ListModels(ctx context.Context, secret string) ([]ai.ModelInfo, error) {
	body, err := utils.DoGet(ctx, p.client, ai.ProviderClaude, p.baseURL+modelsEndpoint+"?limit=20", "", p.buildHeaders(secret)...)
	if err != nil {
		return nil, err
	}

	models := []ai.ModelInfo{}
	gjson.GetBytes(body, "data").ForEach(func(_, model gjson.Result) bool {
		id := model.Get("id").String()
		if id == "" {
			return true
		}
		name := model.Get("display_name").String()
		if name == "" {
			name = id
		}
		models = append(models, ai.ModelInfo{
			ID:         id,
			Name:       name,
			Provider:   ai.ProviderClaude,
			ModifiedAt: model.Get("created_at").String(),
		})
		return true
	})
	return models, nil
}

// ValidateKey implements [ai.Provider] with a one-item models listing.
func (p *AnthropicProvider) ValidateKey(ctx context.Context, secret string) (bool, error) {
	_, err := utils.DoGet(ctx, p.client, ai.ProviderClaude, p.baseURL+modelsEndpoint+"?limit=1", "", p.buildHeaders(secret)...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ai.ErrAuthenticationFailed):
		return false, nil
	default:
		return false, err
	}
}
