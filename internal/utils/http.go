package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

// maxResponseBodySize is the maximum response body size (10 MB). Enforced via
// io.LimitReader to prevent unbounded memory allocation from rogue responses.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// HeaderOption is an extra request header. Options are applied after the
// defaults, so they can override Authorization or Accept.
type HeaderOption struct {
	Key   string
	Value string
}

// DoPostSync performs a synchronous HTTP POST with a JSON body and returns the
// raw response body of a successful call.
//
// Error Handling Strategy:
//   - Transport failures are classified by ai.ClassifyTransportError into
//     timeout, connection and generic transport errors
//   - Non-2xx statuses are classified by ai.ClassifyStatus (401, 429, other)
//   - Response body close errors are logged but don't override primary errors
//
// A non-empty apiKey is sent as a Bearer token; providers with other auth
// schemes pass "" and supply their header through headers.
func DoPostSync(ctx context.Context, client *http.Client, provider ai.ProviderName, url string, apiKey string, body any, headers ...HeaderOption) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doSync(ctx, client, provider, req, len(jsonBody), apiKey, headers)
}

// DoGet performs a synchronous HTTP GET and returns the raw response body of a
// successful call. Errors are classified exactly like [DoPostSync].
func DoGet(ctx context.Context, client *http.Client, provider ai.ProviderName, url string, apiKey string, headers ...HeaderOption) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	return doSync(ctx, client, provider, req, 0, apiKey, headers)
}

func doSync(ctx context.Context, client *http.Client, provider ai.ProviderName, req *http.Request, requestSize int, apiKey string, headers []HeaderOption) ([]byte, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	applyHeaders(req, apiKey, headers)

	if span != nil {
		span.AddEvent(observability.EventRequestPrepared,
			observability.String(observability.AttrHTTPMethod, req.Method),
			observability.String(observability.AttrHTTPURL, req.URL.String()),
			observability.Int(observability.AttrHTTPRequestBodySize, requestSize),
		)
	}

	requestStart := time.Now()
	res, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventRequestError,
				observability.Error(err),
				observability.Duration(observability.AttrHTTPDuration, requestDuration),
			)
		}
		return nil, ai.ClassifyTransportError(fmt.Errorf("error sending request: %w", err))
	}
	defer CloseWithLog(ctx, res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return nil, ai.ClassifyTransportError(fmt.Errorf("error reading response body: %w", err))
	}

	if span != nil {
		span.AddEvent(observability.EventResponseReceived,
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration(observability.AttrHTTPDuration, requestDuration),
		)
	}

	if err := ai.ClassifyStatus(provider, res.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

func applyHeaders(req *http.Request, apiKey string, headers []HeaderOption) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}
}

// CloseWithLog closes c and logs a failure instead of returning it, so a close
// error never overrides the primary result of the caller.
func CloseWithLog(ctx context.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		observability.LoggerFrom(ctx).Warn(ctx, "failed to close response body", observability.Error(err))
	}
}
