package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

const (
	// defaultBaseURL is where a local Ollama server listens by default.
	defaultBaseURL = "http://localhost:11434"

	chatEndpoint = "/api/chat"
	tagsEndpoint = "/api/tags"

	// DefaultModel is used when a request names no model.
	DefaultModel = "llama3.2"
)

// OllamaProvider implements [ai.Provider] for a local Ollama server.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

var _ ai.Provider = (*OllamaProvider)(nil)

// New returns an [OllamaProvider] whose base URL comes from
// OLLAMA_API_BASE_URL, defaulting to http://localhost:11434.
func New() *OllamaProvider {
	return &OllamaProvider{
		baseURL: ai.EnvOr("OLLAMA_API_BASE_URL", defaultBaseURL),
		client:  &http.Client{},
	}
}

// Name implements [ai.Provider].
func (p *OllamaProvider) Name() ai.ProviderName {
	return ai.ProviderOllama
}

// Dialect implements [ai.Provider].
func (p *OllamaProvider) Dialect() ai.Dialect {
	return Dialect{}
}

// RequiresCredential implements [ai.Provider]. A local server needs none.
func (p *OllamaProvider) RequiresCredential() bool {
	return false
}

// WithBaseURL overrides the server URL.
func (p *OllamaProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient sets the HTTP client used for outbound requests.
func (p *OllamaProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

func requestToOllama(request ai.ChatRequest) chatRequest {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	messages := []chatMessage{}
	if request.System != "" {
		messages = append(messages, chatMessage{Role: string(ai.RoleSystem), Content: request.System})
	}
	for _, message := range request.Conversation() {
		converted := chatMessage{Role: string(message.Role), Content: message.Content.PlainText()}
		for _, block := range message.Content.Blocks {
			if block.Type == ai.ContentImage && block.Source != nil && block.Source.Data != "" {
				converted.Images = append(converted.Images, block.Source.Data)
			}
		}
		messages = append(messages, converted)
	}

	converted := chatRequest{Model: model, Messages: messages, Stream: request.Stream}
	if request.Temperature != nil || request.MaxTokens > 0 {
		converted.Options = &requestOption{Temperature: request.Temperature, NumPredict: request.MaxTokens}
	}
	return converted
}

// SendMessage implements [ai.Provider]. An empty assistant message yields
// ai.ErrEmptyResponse.
func (p *OllamaProvider) SendMessage(ctx context.Context, _ string, request ai.ChatRequest) (*ai.ChatResponse, error) {
	chatReq := requestToOllama(request)
	chatReq.Stream = false
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, ai.ProviderOllama.String()),
			observability.String(observability.AttrLLMModel, chatReq.Model),
		)
	}

	body, err := utils.DoPostSync(ctx, p.client, ai.ProviderOllama, p.baseURL+chatEndpoint, "", chatReq)
	if err != nil {
		return nil, err
	}

	var reply chatChunk
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("error decoding Ollama response: %w (preview: %s)", err, utils.TruncateString(string(body), 200))
	}
	if reply.Message == nil || reply.Message.Content == "" {
		return nil, fmt.Errorf("ollama: %w", ai.ErrEmptyResponse)
	}

	return &ai.ChatResponse{
		Provider:   ai.ProviderOllama,
		Model:      reply.Model,
		Content:    reply.Message.Content,
		Citations:  []ai.Citation{},
		StopReason: reply.DoneReason,
		Usage:      &ai.Usage{InputTokens: reply.PromptEvalCount, OutputTokens: reply.EvalCount},
	}, nil
}

// OpenStream implements [ai.Provider].
func (p *OllamaProvider) OpenStream(ctx context.Context, _ string, request ai.ChatRequest) (io.ReadCloser, error) {
	chatReq := requestToOllama(request)
	chatReq.Stream = true

	response, err := utils.DoPostStream(ctx, p.client, ai.ProviderOllama, p.baseURL+chatEndpoint, "", "application/x-ndjson", chatReq)
	if err != nil {
		return nil, err
	}
	return response.Body, nil
}

// ListModels implements [ai.Provider] from /api/tags.
func (p *OllamaProvider) ListModels(ctx context.Context, _ string) ([]ai.ModelInfo, error) {
	body, err := utils.DoGet(ctx, p.client, ai.ProviderOllama, p.baseURL+tagsEndpoint, "")
	if err != nil {
		return nil, err
	}

	models := []ai.ModelInfo{}
	gjson.GetBytes(body, "models").ForEach(func(_, model gjson.Result) bool {
		name := model.Get("name").String()
		if name == "" {
			return true
		}
		models = append(models, ai.ModelInfo{
			ID:            name,
			Name:          name,
			Provider:      ai.ProviderOllama,
			ParameterSize: model.Get("details.parameter_size").String(),
			Quantization:  model.Get("details.quantization_level").String(),
			ModifiedAt:    model.Get("modified_at").String(),
		})
		return true
	})
	return models, nil
}

// ValidateKey implements [ai.Provider]. With no credential to check, it
// reports whether the server answers at all.
func (p *OllamaProvider) ValidateKey(ctx context.Context, _ string) (bool, error) {
	if _, err := utils.DoGet(ctx, p.client, ai.ProviderOllama, p.baseURL+tagsEndpoint, ""); err != nil {
		return false, err
	}
	return true, nil
}
