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

// DoPostStream performs an HTTP POST request and returns the response with its
// body left open for incremental reading. The caller owns the body and must
// close it. On error paths the body is read and closed before returning, and
// the error is classified the same way as [DoPostSync].
//
// accept sets the Accept header; SSE providers pass "text/event-stream" and
// NDJSON providers pass "application/x-ndjson".
func DoPostStream(ctx context.Context, client *http.Client, provider ai.ProviderName, url string, apiKey string, accept string, body any, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	if span != nil {
		span.AddEvent(observability.EventRequestPrepared,
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(jsonBody)),
			observability.Bool(observability.AttrLLMStreaming, true),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	applyHeaders(req, apiKey, headers)

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventRequestError,
				observability.Error(err),
				observability.Duration(observability.AttrHTTPDuration, requestDuration),
			)
		}
		return nil, ai.ClassifyTransportError(fmt.Errorf("error sending stream request: %w", err))
	}

	// For non-2xx responses, read the body and close it before returning the error
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(ctx, response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			observability.LoggerFrom(ctx).Debug(ctx, "failed to read error body", observability.Error(readErr))
		}
		return nil, ai.ClassifyStatus(provider, response.StatusCode, errorBody)
	}

	if span != nil {
		span.AddEvent(observability.EventStreamStarted,
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration(observability.AttrHTTPDuration, requestDuration),
		)
	}

	return response, nil
}
