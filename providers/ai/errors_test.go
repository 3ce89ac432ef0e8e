package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyStatus_MapsStatusToKind(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{401, ErrAuthenticationFailed},
		{429, ErrRateLimited},
		{400, ErrProviderStatus},
		{403, ErrProviderStatus},
		{500, ErrProviderStatus},
		{529, ErrProviderStatus},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyStatus(ProviderClaude, tt.status, []byte(`{"error":{"message":"nope"}}`))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected *ProviderError, got %T", err)
			}
			if providerErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", providerErr.StatusCode, tt.status)
			}
		})
	}
}

func TestClassifyStatus_401NeverOtherKinds(t *testing.T) {
	err := ClassifyStatus(ProviderPerplexity, 401, nil)
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderStatus) {
		t.Errorf("401 must only classify as authentication failure, got %v", err)
	}
}

func TestClassifyStatus_SuccessIsNil(t *testing.T) {
	if err := ClassifyStatus(ProviderClaude, 200, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestProviderError_MessageFromBody(t *testing.T) {
	err := ClassifyStatus(ProviderClaude, 400, []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	if !strings.Contains(err.Error(), "max_tokens too large") {
		t.Errorf("expected extracted message, got %q", err.Error())
	}

	err = ClassifyStatus(ProviderOllama, 502, []byte("bad gateway"))
	if !strings.Contains(err.Error(), "bad gateway") {
		t.Errorf("expected raw body, got %q", err.Error())
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), ErrTimeout},
		{"net timeout", timeoutError{}, ErrTimeout},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrConnectionFailed},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example"}, ErrConnectionFailed},
		{"other", errors.New("tls: handshake failure"), ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyTransportError(tt.err)
			if !errors.Is(classified, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, classified)
			}
			if !errors.Is(classified, tt.err) {
				t.Error("classified error must still wrap the cause")
			}
		})
	}
}

func TestClassifyTransportError_CancellationUnchanged(t *testing.T) {
	err := ClassifyTransportError(context.Canceled)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ClassifyTransportError(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestIsRetryable_OnlyRateLimit(t *testing.T) {
	if !IsRetryable(ClassifyStatus(ProviderClaude, 429, nil)) {
		t.Error("429 must be retryable")
	}
	if IsRetryable(ClassifyStatus(ProviderClaude, 500, nil)) {
		t.Error("500 must not be retryable")
	}
	if IsRetryable(ClassifyTransportError(context.DeadlineExceeded)) {
		t.Error("timeouts are not retryable by policy")
	}
}

func TestCredentialNotFoundError_Is(t *testing.T) {
	err := fmt.Errorf("resolve: %w", &CredentialNotFoundError{Provider: ProviderClaude})
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Error("expected errors.Is to match ErrCredentialNotFound")
	}
	if !strings.Contains(err.Error(), "CLAUDE_API_KEY") {
		t.Errorf("expected hint with env var, got %q", err.Error())
	}
}
