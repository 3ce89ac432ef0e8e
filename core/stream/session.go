package stream

import (
	"bytes"
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

// State is the lifecycle position of a Session.
type State int

const (
	// StateReceiving accepts chunks.
	StateReceiving State = iota
	// StateDraining decodes the residual buffer after the source ended.
	StateDraining
	// StateDone has emitted the terminal event; further input is ignored.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReceiving:
		return "receiving"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Stats counts how frames were recovered during a session.
type Stats struct {
	Lines    int
	Salvaged int
	Dropped  int
}

// Session is the mutable state of one streaming call. It is owned by a single
// goroutine and is not safe for concurrent use.
type Session struct {
	id      string
	dialect ai.Dialect

	lineBuffer []byte
	text       strings.Builder
	citations  []ai.Citation
	seen       map[ai.Citation]struct{}
	usage      *ai.Usage
	stopReason string

	state State
	stats Stats
}

// NewSession creates a session decoding with the given dialect.
func NewSession(dialect ai.Dialect) *Session {
	return &Session{
		id:        uuid.NewString(),
		dialect:   dialect,
		citations: []ai.Citation{},
		seen:      make(map[ai.Citation]struct{}),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Provider returns the provider whose dialect the session decodes.
func (s *Session) Provider() ai.ProviderName { return s.dialect.Provider() }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Text returns the text accumulated so far.
func (s *Session) Text() string { return s.text.String() }

// Citations returns a copy of the citations collected so far.
func (s *Session) Citations() []ai.Citation {
	return append([]ai.Citation{}, s.citations...)
}

// Stats returns the frame recovery counters.
func (s *Session) Stats() Stats { return s.stats }

// Buffered returns the number of bytes waiting for a line terminator.
func (s *Session) Buffered() int { return len(s.lineBuffer) }

// Feed appends a chunk and returns the events decoded from every line the
// chunk completed, in line order. Chunks fed after Finish are ignored.
func (s *Session) Feed(ctx context.Context, chunk []byte) []ai.Event {
	if s.state != StateReceiving || len(chunk) == 0 {
		return nil
	}

	s.lineBuffer = append(s.lineBuffer, chunk...)

	var events []ai.Event
	start := 0
	for {
		newline := bytes.IndexByte(s.lineBuffer[start:], '\n')
		if newline < 0 {
			break
		}
		events = append(events, s.processLine(ctx, s.lineBuffer[start:start+newline])...)
		start += newline + 1
	}

	// Keep only the unterminated tail.
	s.lineBuffer = append(s.lineBuffer[:0], s.lineBuffer[start:]...)
	return events
}

// Finish drains the residual buffer through the line pipeline and returns
// its events followed by the single Done event. Calling Finish again returns
// nothing.
func (s *Session) Finish(ctx context.Context) []ai.Event {
	if s.state == StateDone {
		return nil
	}

	s.state = StateDraining
	var events []ai.Event
	if len(s.lineBuffer) > 0 {
		events = s.processLine(ctx, s.lineBuffer)
		s.lineBuffer = nil
	}

	s.state = StateDone
	done := ai.Done(s.text.String(), s.Citations())
	done.Usage = s.usage
	done.StopReason = s.stopReason
	events = append(events, done)

	observability.LoggerFrom(ctx).Debug(ctx, "Stream session finished",
		observability.String(observability.AttrSessionID, s.id),
		observability.String(observability.AttrLLMProvider, s.Provider().String()),
		observability.Int(observability.AttrStreamTextLength, s.text.Len()),
		observability.Int(observability.AttrStreamCitations, len(s.citations)),
		observability.Int(observability.AttrStreamSalvaged, s.stats.Salvaged),
		observability.Int(observability.AttrStreamDropped, s.stats.Dropped),
	)
	return events
}

// apply folds decoded events into the session state and returns the ones to
// forward. Repeated citations are kept once and not forwarded again.
func (s *Session) apply(ctx context.Context, decoded []ai.Event) []ai.Event {
	forward := make([]ai.Event, 0, len(decoded))
	for _, event := range decoded {
		switch event.Type {
		case ai.EventTextDelta:
			if event.Text == "" {
				continue
			}
			s.text.WriteString(event.Text)

		case ai.EventCitation:
			if event.Citation == nil {
				continue
			}
			if _, duplicate := s.seen[*event.Citation]; duplicate {
				continue
			}
			s.seen[*event.Citation] = struct{}{}
			s.citations = append(s.citations, *event.Citation)

		case ai.EventLifecycle:
			s.mergeUsage(event.Usage)
			if (event.Lifecycle == ai.LifecycleMessageDelta || event.Lifecycle == ai.LifecycleMessageStop) && event.Detail != "" {
				s.stopReason = event.Detail
			}
			if event.Lifecycle == ai.LifecycleError {
				observability.LoggerFrom(ctx).Warn(ctx, "Provider reported a stream error",
					observability.String(observability.AttrSessionID, s.id),
					observability.String(observability.AttrLLMProvider, s.Provider().String()),
					observability.String("error", event.Detail),
				)
			}

		case ai.EventDone:
			// Only the session decides when a stream is done.
			continue
		}
		forward = append(forward, event)
	}
	return forward
}

func (s *Session) mergeUsage(usage *ai.Usage) {
	if usage == nil {
		return
	}
	if s.usage == nil {
		s.usage = &ai.Usage{}
	}
	if usage.InputTokens > 0 {
		s.usage.InputTokens = usage.InputTokens
	}
	if usage.OutputTokens > 0 {
		s.usage.OutputTokens = usage.OutputTokens
	}
}
