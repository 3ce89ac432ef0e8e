package ai

import (
	"context"
	"io"
	"net/http"
)

// Provider is implemented by every provider adapter. The secret is passed per
// call so adapters hold no credential state and one adapter serves every
// concurrent session.
type Provider interface {
	// Name returns the canonical provider name.
	Name() ProviderName

	// Dialect returns the decoder for this provider's stream payloads.
	Dialect() Dialect

	// RequiresCredential reports whether calls need a resolved secret.
	RequiresCredential() bool

	// SendMessage performs a synchronous completion. Non-success statuses are
	// classified into the error taxonomy and an empty content array yields
	// ErrEmptyResponse.
	SendMessage(ctx context.Context, secret string, request ChatRequest) (*ChatResponse, error)

	// OpenStream sends a streaming request and returns the live response body.
	// The caller owns the returned body and must close it.
	OpenStream(ctx context.Context, secret string, request ChatRequest) (io.ReadCloser, error)

	// ListModels returns the models the provider offers.
	ListModels(ctx context.Context, secret string) ([]ModelInfo, error)

	// ValidateKey checks a secret against the provider. A rejected secret
	// returns false with a nil error.
	ValidateKey(ctx context.Context, secret string) (bool, error)

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}
