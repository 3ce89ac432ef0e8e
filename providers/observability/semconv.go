package observability

// Attribute keys shared by the gateway packages.

// --- Provider attributes ---

const (
	// AttrLLMProvider is the canonical provider name ("claude", "perplexity", "ollama")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMStreaming marks streaming calls
	AttrLLMStreaming = "llm.streaming"

	// AttrLLMStopReason is the provider's stop reason, when reported
	AttrLLMStopReason = "llm.stop_reason"

	// AttrLLMMaxTokens is the maximum tokens allowed
	AttrLLMMaxTokens = "llm.max_tokens" // #nosec G101 -- LLM tokens, not credentials

	// AttrLLMTokensInput is the number of input tokens
	AttrLLMTokensInput = "llm.tokens.input" // #nosec G101 -- LLM tokens, not credentials

	// AttrLLMTokensOutput is the number of output tokens
	AttrLLMTokensOutput = "llm.tokens.output" // #nosec G101 -- LLM tokens, not credentials
)

// --- HTTP attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPURL              = "http.url"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPRequestBodySize  = "http.request.body_size"
	AttrHTTPResponseBodySize = "http.response.body_size"
	AttrHTTPDuration         = "http.request.duration"
)

// --- Stream session attributes ---

const (
	// AttrSessionID identifies one streaming session across its log lines
	AttrSessionID = "stream.session_id"

	// AttrStreamLine is a (truncated) raw line that failed to decode
	AttrStreamLine = "stream.line"

	// AttrStreamEventType is the normalized event type being forwarded
	AttrStreamEventType = "stream.event_type"

	// AttrStreamTextLength is the accumulated text length at session end
	AttrStreamTextLength = "stream.text_length"

	// AttrStreamCitations is the citation count at session end
	AttrStreamCitations = "stream.citations"

	// AttrStreamSalvaged is the number of frames recovered by salvage
	AttrStreamSalvaged = "stream.frames_salvaged"

	// AttrStreamDropped is the number of frames dropped after salvage failed
	AttrStreamDropped = "stream.frames_dropped"
)

// --- Credential attributes ---

const (
	// AttrCredentialTier is the storage tier a secret was found in or written to
	AttrCredentialTier = "credential.tier"

	// AttrCredentialLength is the length of a secret. The secret itself is never logged.
	AttrCredentialLength = "credential.length"

	// AttrCredentialPath is the file backing a file tier
	AttrCredentialPath = "credential.path"

	// AttrCredentialMigrated lists providers migrated in one scan
	AttrCredentialMigrated = "credential.migrated"
)

// --- Status attributes ---

const (
	AttrStatus            = "status"
	AttrStatusDescription = "status.description"

	// AttrDuration is the wall time of a gateway call
	AttrDuration = "duration"
)

// --- Span names ---

const (
	SpanCompletion       = "gateway.completion"
	SpanStreamCompletion = "gateway.stream_completion"
	SpanResolve          = "credentials.resolve"
	SpanMigrate          = "credentials.migrate"
)

// --- Span events ---

const (
	EventRequestPrepared  = "http.request.prepared"
	EventRequestError     = "http.request.error"
	EventResponseReceived = "http.response.received"
	EventStreamStarted    = "http.stream.started"
	EventStreamEnded      = "stream.ended"
)

// --- Metric names ---

const (
	MetricFramesSalvaged       = "stream.frames.salvaged"
	MetricFramesDropped        = "stream.frames.dropped"
	MetricForwardFailures      = "stream.forward.failures"
	MetricCredentialsMigrated  = "credentials.migrated"
	MetricStreamSessionSeconds = "stream.session.seconds"
	MetricRequestCount         = "gateway.requests"
	MetricRequestSeconds       = "gateway.request.seconds"
	MetricTokensInput          = "gateway.tokens.input"
	MetricTokensOutput         = "gateway.tokens.output"
)
