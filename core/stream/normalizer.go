package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/childreth/Olly/internal/utils"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

const (
	dataPrefix  = "data:"
	eventPrefix = "event:"
	doneMarker  = "[DONE]"

	// logLineLimit bounds raw line excerpts in log records.
	logLineLimit = 200
)

// processLine runs one complete line through framing, strict decoding and,
// when that fails, salvage. Lines that carry no payload yield nothing.
func (s *Session) processLine(ctx context.Context, raw []byte) []ai.Event {
	payload, ok := s.extractPayload(ctx, raw)
	if !ok {
		return nil
	}
	s.stats.Lines++

	decoded, err := s.dialect.Decode(payload)
	if err == nil {
		return s.apply(ctx, decoded)
	}

	logger := observability.LoggerFrom(ctx)
	if salvaged, ok := s.salvage(payload); ok {
		s.stats.Salvaged++
		observability.CounterFrom(ctx, observability.MetricFramesSalvaged).Add(ctx, 1,
			observability.String(observability.AttrLLMProvider, s.Provider().String()))
		logger.Debug(ctx, "Salvaged malformed stream frame",
			observability.String(observability.AttrSessionID, s.id),
			observability.Error(err),
			observability.String(observability.AttrStreamLine, utils.TruncateString(payload, logLineLimit)),
		)
		return s.apply(ctx, salvaged)
	}

	s.stats.Dropped++
	observability.CounterFrom(ctx, observability.MetricFramesDropped).Add(ctx, 1,
		observability.String(observability.AttrLLMProvider, s.Provider().String()))
	logger.Warn(ctx, "Dropped undecodable stream frame",
		observability.String(observability.AttrSessionID, s.id),
		observability.String(observability.AttrLLMProvider, s.Provider().String()),
		observability.Error(err),
		observability.String(observability.AttrStreamLine, utils.TruncateString(payload, logLineLimit)),
	)
	return nil
}

// extractPayload strips SSE framing from a line. It reports false for blank
// lines, the [DONE] marker, "event:" metadata lines and anything that does
// not start with an object, such as keep-alive comments.
func (s *Session) extractPayload(ctx context.Context, raw []byte) (string, bool) {
	line := strings.TrimSpace(string(bytes.ToValidUTF8(raw, []byte("\uFFFD"))))
	if line == "" {
		return "", false
	}

	if strings.HasPrefix(line, eventPrefix) {
		observability.LoggerFrom(ctx).Trace(ctx, "Stream event marker",
			observability.String(observability.AttrSessionID, s.id),
			observability.String(observability.AttrStreamEventType, strings.TrimSpace(line[len(eventPrefix):])),
		)
		return "", false
	}

	payload := line
	if strings.HasPrefix(payload, dataPrefix) {
		payload = strings.TrimSpace(payload[len(dataPrefix):])
	}

	if payload == "" || payload == doneMarker || !strings.HasPrefix(payload, "{") {
		return "", false
	}
	return payload, true
}

// salvage recovers what it can from a payload that failed strict decoding.
// JSON repair comes first because it keeps every field of a truncated frame;
// the literal marker scan is a last resort that can only recover text and
// may pick up an unrelated field carrying the same key.
func (s *Session) salvage(payload string) ([]ai.Event, bool) {
	if repaired, err := utils.RepairJSON(payload); err == nil && repaired != payload {
		if events, err := s.dialect.Decode(repaired); err == nil {
			return events, true
		}
	}

	for _, marker := range s.dialect.SalvageMarkers() {
		if text, ok := scanMarkedString(payload, marker); ok {
			return []ai.Event{ai.TextDelta(text)}, true
		}
	}
	return nil, false
}

// scanMarkedString finds marker in payload and returns the JSON string value
// that follows it, up to the next unescaped quote or the end of the payload.
// Escape sequences are decoded; a dangling escape at a truncation point is cut.
func scanMarkedString(payload, marker string) (string, bool) {
	start := strings.Index(payload, marker)
	if start < 0 {
		return "", false
	}
	rest := payload[start+len(marker):]

	end := len(rest)
	escaped := false
scan:
	for i := 0; i < len(rest); i++ {
		switch {
		case escaped:
			escaped = false
		case rest[i] == '\\':
			escaped = true
		case rest[i] == '"':
			end = i
			break scan
		}
	}
	value := rest[:end]

	text, ok := unescapeJSONString(value)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

// unescapeJSONString decodes the body of a JSON string literal, trimming an
// incomplete escape sequence left by truncation.
func unescapeJSONString(value string) (string, bool) {
	for trim := 0; trim <= 6 && trim <= len(value); trim++ {
		candidate := value[:len(value)-trim]
		var decoded string
		if err := json.Unmarshal([]byte(`"`+candidate+`"`), &decoded); err == nil {
			return decoded, true
		}
	}
	return "", false
}
