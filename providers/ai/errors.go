package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/tidwall/gjson"
)

var (
	// ErrCredentialNotFound is returned when no tier holds a secret for the provider.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialStoreUnavailable marks a tier that cannot be used on this
	// host. It is never fatal on its own; lookup cascades to the next tier.
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")

	// ErrAuthenticationFailed is the class of HTTP 401 responses.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimited is the class of HTTP 429 responses. Callers may retry.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderStatus is the class of every other non-success status.
	ErrProviderStatus = errors.New("provider error")

	// ErrTimeout marks a request or stream that exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrConnectionFailed marks a failure to reach the provider at all.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrTransport marks any other transport-level failure.
	ErrTransport = errors.New("transport error")

	// ErrMalformedFrame marks a stream line that failed strict decoding. It is
	// recovered inside the normalizer and never returned by a call.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrEmptyResponse is returned when a synchronous reply has no content.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnsupportedProvider is returned for provider names with no adapter.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// CredentialNotFoundError reports that every tier missed for Provider.
type CredentialNotFoundError struct {
	Provider ProviderName
}

func (e *CredentialNotFoundError) Error() string {
	return fmt.Sprintf("credential not found for provider %q (set it with `olly keys set %s` or %s)",
		e.Provider, e.Provider, e.Provider.EnvVar())
}

func (e *CredentialNotFoundError) Unwrap() error {
	return ErrCredentialNotFound
}

// ProviderError is a classified non-success HTTP response. Kind is one of
// ErrAuthenticationFailed, ErrRateLimited or ErrProviderStatus and is what
// errors.Is matches against.
type ProviderError struct {
	Provider   ProviderName
	StatusCode int
	Body       string
	Kind       error
}

func (e *ProviderError) Error() string {
	message := extractErrorMessage(e.Body)
	if message == "" {
		return fmt.Sprintf("%s: %v (status %d)", e.Provider, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v (status %d): %s", e.Provider, e.Kind, e.StatusCode, message)
}

func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// ClassifyStatus maps a non-success HTTP status onto the error taxonomy:
// 401 is ErrAuthenticationFailed, 429 is ErrRateLimited and anything else is
// ErrProviderStatus. Success statuses return nil.
func ClassifyStatus(provider ProviderName, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	kind := ErrProviderStatus
	switch statusCode {
	case http.StatusUnauthorized:
		kind = ErrAuthenticationFailed
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	}

	return &ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Body:       string(body),
		Kind:       kind,
	}
}

// TransportError is a classified network failure. errors.Is matches both its
// Kind and the underlying cause.
type TransportError struct {
	Kind error
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ClassifyTransportError splits a network-level failure into ErrTimeout,
// ErrConnectionFailed or ErrTransport. Caller cancellation is returned
// unchanged because it is not a transport failure.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	return &TransportError{Kind: transportKind(err), Err: err}
}

func transportKind(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnectionFailed
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return ErrConnectionFailed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrConnectionFailed
	}

	return ErrTransport
}

// IsRetryable reports whether the caller may retry the call. Only rate
// limiting qualifies; the gateway itself never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// extractErrorMessage pulls a human-readable message out of a provider error
// body, falling back to the trimmed raw body.
func extractErrorMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	if gjson.Valid(body) {
		for _, path := range []string{"error.message", "message", "detail", "error"} {
			if result := gjson.Get(body, path); result.Type == gjson.String && result.String() != "" {
				return result.String()
			}
		}
	}
	if len(body) > 300 {
		return body[:300] + "..."
	}
	return body
}
