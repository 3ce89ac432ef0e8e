package ai

// EventType tags a normalized stream event.
type EventType string

const (
	// EventTextDelta carries an incremental text fragment in Text.
	EventTextDelta EventType = "text_delta"
	// EventCitation carries a single citation in Citation.
	EventCitation EventType = "citation"
	// EventLifecycle carries an informational marker in Lifecycle; it never
	// contributes text.
	EventLifecycle EventType = "lifecycle"
	// EventDone terminates a session. Text holds the full accumulated text and
	// Citations the complete citation list.
	EventDone EventType = "done"
)

// LifecycleKind names the informational markers a provider stream reports.
type LifecycleKind string

const (
	LifecycleMessageStart      LifecycleKind = "message_start"
	LifecycleContentBlockStart LifecycleKind = "content_block_start"
	LifecycleContentBlockStop  LifecycleKind = "content_block_stop"
	LifecycleMessageDelta      LifecycleKind = "message_delta"
	LifecycleMessageStop       LifecycleKind = "message_stop"
	LifecyclePing              LifecycleKind = "ping"
	LifecycleError             LifecycleKind = "error"
)

// Event is one normalized stream event. Exactly one Done event ends a session
// and zero or more TextDelta, Citation and Lifecycle events precede it.
type Event struct {
	Type       EventType     `json:"type"`
	Text       string        `json:"text,omitempty"`
	Citation   *Citation     `json:"citation,omitempty"`
	Lifecycle  LifecycleKind `json:"lifecycle,omitempty"`
	Detail     string        `json:"detail,omitempty"` // Block type, stop reason or error message for Lifecycle events
	Citations  []Citation    `json:"citations,omitempty"`
	Usage      *Usage        `json:"usage,omitempty"`
	StopReason string        `json:"stop_reason,omitempty"`
}

// TextDelta builds a text delta event.
func TextDelta(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

// CitationEvent builds a citation event.
func CitationEvent(citation Citation) Event {
	return Event{Type: EventCitation, Citation: &citation}
}

// Lifecycle builds a lifecycle event with an optional detail string.
func Lifecycle(kind LifecycleKind, detail ...string) Event {
	event := Event{Type: EventLifecycle, Lifecycle: kind}
	if len(detail) > 0 {
		event.Detail = detail[0]
	}
	return event
}

// Done builds the terminal event. A nil citation list is replaced with an
// empty one so consumers always receive a list.
func Done(fullText string, citations []Citation) Event {
	if citations == nil {
		citations = []Citation{}
	}
	return Event{Type: EventDone, Text: fullText, Citations: citations}
}

// IsDone reports whether the event terminates a session.
func (e Event) IsDone() bool {
	return e.Type == EventDone
}
