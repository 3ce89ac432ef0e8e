package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/childreth/Olly/core/resolver"
	corestream "github.com/childreth/Olly/core/stream"
	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/ai/anthropic"
	"github.com/childreth/Olly/providers/ai/ollama"
	"github.com/childreth/Olly/providers/ai/perplexity"
	"github.com/childreth/Olly/providers/credentials"
	"github.com/childreth/Olly/providers/observability"
)

const (
	// DefaultRequestTimeout bounds a synchronous completion.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultStreamTimeout bounds a streaming session from request to Done.
	DefaultStreamTimeout = 10 * time.Minute
)

// Gateway dispatches completions to registered providers.
type Gateway struct {
	providers   map[ai.ProviderName]ai.Provider
	resolver    *resolver.Resolver
	observer    observability.Provider
	middlewares []MiddlewareConfig

	requestTimeout time.Duration
	streamTimeout  time.Duration
	webSearch      bool
	maxTokens      int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithProvider registers provider under its own name, replacing any
// adapter already registered for that name.
func WithProvider(provider ai.Provider) Option {
	return func(g *Gateway) {
		g.providers[provider.Name()] = provider
	}
}

// WithObserver enables spans, metrics and context-carried logging for every
// call. The observability middleware becomes the outermost wrapper.
func WithObserver(observer observability.Provider) Option {
	return func(g *Gateway) {
		g.observer = observer
	}
}

// WithMiddleware appends middlewares after the built-in ones.
func WithMiddleware(middlewares ...MiddlewareConfig) Option {
	return func(g *Gateway) {
		g.middlewares = append(g.middlewares, middlewares...)
	}
}

// WithLogger adds the logging middleware at the given level.
func WithLogger(logger *slog.Logger, level LogLevel) Option {
	return WithMiddleware(NewLoggingMiddleware(logger, level))
}

// WithTimeouts overrides the synchronous and streaming bounds. Zero disables
// a bound.
func WithTimeouts(request, stream time.Duration) Option {
	return func(g *Gateway) {
		g.requestTimeout = request
		g.streamTimeout = stream
	}
}

// WithWebSearch controls whether claude requests without a tool config get
// the web search tool. It is on by default.
func WithWebSearch(enabled bool) Option {
	return func(g *Gateway) {
		g.webSearch = enabled
	}
}

// WithDefaultMaxTokens sets max_tokens for requests that leave it at zero.
// Zero leaves the choice to each adapter.
func WithDefaultMaxTokens(maxTokens int) Option {
	return func(g *Gateway) {
		g.maxTokens = maxTokens
	}
}

// New creates a gateway with the claude, perplexity and ollama adapters
// registered under their default endpoints.
func New(credentialResolver *resolver.Resolver, opts ...Option) *Gateway {
	g := &Gateway{
		providers: map[ai.ProviderName]ai.Provider{
			ai.ProviderClaude:     anthropic.New(),
			ai.ProviderPerplexity: perplexity.New(),
			ai.ProviderOllama:     ollama.New(),
		},
		resolver:       credentialResolver,
		requestTimeout: DefaultRequestTimeout,
		streamTimeout:  DefaultStreamTimeout,
		webSearch:      true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// chain returns the full middleware list: observability outermost, then any
// configured middlewares, then the timeout closest to the provider.
func (g *Gateway) chain() []MiddlewareConfig {
	chain := make([]MiddlewareConfig, 0, len(g.middlewares)+2)
	if g.observer != nil {
		chain = append(chain, NewObservabilityMiddleware(g.observer))
	}
	chain = append(chain, g.middlewares...)
	chain = append(chain, NewTimeoutMiddleware(g.requestTimeout, g.streamTimeout))
	return chain
}

// withObserver attaches the configured observer so credential lookups made
// before the chain runs log through it too.
func (g *Gateway) withObserver(ctx context.Context) context.Context {
	if g.observer != nil && observability.ObserverFromContext(ctx) == nil {
		return observability.ContextWithObserver(ctx, g.observer)
	}
	return ctx
}

// Provider returns the adapter registered for name, accepting aliases.
func (g *Gateway) Provider(name ai.ProviderName) (ai.Provider, error) {
	canonical := ai.CanonicalProvider(name.String())
	provider, ok := g.providers[canonical]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ai.ErrUnsupportedProvider, name)
	}
	return provider, nil
}

// Providers lists the registered provider names, sorted.
func (g *Gateway) Providers() []ai.ProviderName {
	names := make([]ai.ProviderName, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// prepare resolves the adapter and secret and shapes the request. Every
// failure here happens before any network call.
func (g *Gateway) prepare(ctx context.Context, request ai.ChatRequest, streaming bool) (ai.Provider, string, ai.ChatRequest, error) {
	provider, err := g.Provider(request.Provider)
	if err != nil {
		return nil, "", request, err
	}

	secret := ""
	if provider.RequiresCredential() {
		secret, err = g.resolver.Resolve(ctx, provider.Name())
		if err != nil {
			return nil, "", request, err
		}
	}

	shaped := g.shapeRequest(provider.Name(), request, streaming)
	if len(shaped.Messages) == 0 {
		return nil, "", request, fmt.Errorf("%s: request has no messages and no prompt", provider.Name())
	}
	return provider, secret, shaped, nil
}

// shapeRequest applies the gateway defaults to a copy of request.
func (g *Gateway) shapeRequest(name ai.ProviderName, request ai.ChatRequest, streaming bool) ai.ChatRequest {
	request.Provider = name
	request.Stream = streaming
	request.Messages = request.Conversation()
	request.Prompt = ""

	if request.MaxTokens == 0 && g.maxTokens > 0 {
		request.MaxTokens = g.maxTokens
	}
	if name == ai.ProviderClaude && request.ToolConfig == nil && g.webSearch {
		request.ToolConfig = &ai.ToolConfig{WebSearch: true}
	}
	return request
}

// Completion performs a synchronous completion. Credential problems surface
// before any request is sent; HTTP and transport failures are classified
// into the ai error taxonomy.
func (g *Gateway) Completion(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	ctx = g.withObserver(ctx)

	provider, secret, shaped, err := g.prepare(ctx, request, false)
	if err != nil {
		return nil, err
	}

	base := func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		return provider.SendMessage(ctx, secret, request)
	}
	return buildSendChain(base, g.chain())(ctx, shaped)
}

// StreamCompletion opens a streaming completion and returns its normalized
// event stream. The stream yields text deltas, citations and lifecycle
// markers in source order and ends with exactly one Done event, or with a
// single classified error and no Done. The caller must consume the stream;
// the response body is released when iteration ends.
func (g *Gateway) StreamCompletion(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	ctx = g.withObserver(ctx)

	provider, secret, shaped, err := g.prepare(ctx, request, true)
	if err != nil {
		return nil, err
	}

	base := func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		body, err := provider.OpenStream(ctx, secret, request)
		if err != nil {
			return nil, err
		}

		session := corestream.NewSession(provider.Dialect())
		observability.LoggerFrom(ctx).Debug(ctx, "Stream session started",
			observability.String(observability.AttrSessionID, session.ID()),
			observability.String(observability.AttrLLMProvider, provider.Name().String()),
		)
		events := corestream.Events(ctx, session, corestream.NewReaderSource(body))

		return ai.NewChatStream(provider.Name(), func(yield func(ai.Event, error) bool) {
			defer utils.CloseWithLog(ctx, body)
			for event, err := range events {
				if !yield(event, err) {
					return
				}
			}
		}), nil
	}
	return buildStreamChain(base, g.chain())(ctx, shaped)
}

// StreamCompletionTo streams a completion into sink and returns the
// collected response. Sink failures are logged and never abort decoding.
// Sends share the stream deadline, so a sink that stops receiving cannot
// hold the session open past stream_timeout.
func (g *Gateway) StreamCompletionTo(ctx context.Context, request ai.ChatRequest, sink Sink) (*ai.ChatResponse, error) {
	ctx = g.withObserver(ctx)

	chatStream, err := g.StreamCompletion(ctx, request)
	if err != nil {
		return nil, err
	}

	forwardCtx, cancel := g.streamContext(ctx)
	defer cancel()
	response, err := Emit(forwardCtx, chatStream, sink)
	if response != nil && response.Model == "" {
		response.Model = request.Model
	}
	return response, err
}

// ResolveCredential returns the secret for provider, migrating it into
// secure storage when it was found in the environment or the legacy file.
func (g *Gateway) ResolveCredential(ctx context.Context, provider ai.ProviderName) (string, error) {
	return g.resolver.Resolve(g.withObserver(ctx), provider)
}

// StoreCredential saves secret for provider in secure storage.
func (g *Gateway) StoreCredential(ctx context.Context, provider ai.ProviderName, secret string) error {
	return g.resolver.Store().Store(g.withObserver(ctx), provider, secret)
}

// DeleteCredential removes provider's secret from secure storage.
func (g *Gateway) DeleteCredential(ctx context.Context, provider ai.ProviderName) error {
	return g.resolver.Store().Delete(g.withObserver(ctx), provider)
}

// ListProviders returns the providers with a stored secret.
func (g *Gateway) ListProviders(ctx context.Context) ([]ai.ProviderName, error) {
	return g.resolver.Store().List(g.withObserver(ctx))
}

// ProviderInfo returns the metadata of provider's stored secret.
func (g *Gateway) ProviderInfo(ctx context.Context, provider ai.ProviderName) (credentials.ProviderCredential, error) {
	return g.resolver.Store().Info(g.withObserver(ctx), provider)
}

// MigrateLegacy moves legacy config file secrets into secure storage.
func (g *Gateway) MigrateLegacy(ctx context.Context) (resolver.MigrationReport, error) {
	return g.resolver.MigrateLegacy(g.withObserver(ctx))
}

// ValidateCredential checks secret against the provider. An empty secret is
// resolved first. A rejected secret returns false and a nil error.
func (g *Gateway) ValidateCredential(ctx context.Context, name ai.ProviderName, secret string) (bool, error) {
	ctx = g.withObserver(ctx)

	provider, err := g.Provider(name)
	if err != nil {
		return false, err
	}
	if secret == "" && provider.RequiresCredential() {
		if secret, err = g.resolver.Resolve(ctx, provider.Name()); err != nil {
			return false, err
		}
	}

	ctx, cancel := g.requestContext(ctx)
	defer cancel()
	return provider.ValidateKey(ctx, secret)
}

// ListModels returns the models offered by provider.
func (g *Gateway) ListModels(ctx context.Context, name ai.ProviderName) ([]ai.ModelInfo, error) {
	ctx = g.withObserver(ctx)

	provider, err := g.Provider(name)
	if err != nil {
		return nil, err
	}

	secret := ""
	if provider.RequiresCredential() {
		if secret, err = g.resolver.Resolve(ctx, provider.Name()); err != nil {
			return nil, err
		}
	}

	ctx, cancel := g.requestContext(ctx)
	defer cancel()
	return provider.ListModels(ctx, secret)
}

// ListAllModels concatenates the model lists of every registered provider.
// A provider that fails, for example because it has no credential or its
// server is down, is logged and skipped. An error is returned only when
// every provider failed.
func (g *Gateway) ListAllModels(ctx context.Context) ([]ai.ModelInfo, error) {
	ctx = g.withObserver(ctx)
	logger := observability.LoggerFrom(ctx)

	var all []ai.ModelInfo
	var failures []error
	for _, name := range g.Providers() {
		models, err := g.ListModels(ctx, name)
		if err != nil {
			logger.Warn(ctx, "Skipping provider in model listing",
				observability.String(observability.AttrLLMProvider, name.String()),
				observability.Error(err),
			)
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}
		all = append(all, models...)
	}

	if len(all) == 0 && len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return all, nil
}

func (g *Gateway) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.requestTimeout)
}

func (g *Gateway) streamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.streamTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.streamTimeout)
}
