package ai

import (
	"iter"
	"strings"
)

// ChatStream wraps a normalized event iterator and can accumulate it into a
// final ChatResponse. The iterator yields events with a nil error and ends
// either after the Done event or with a single non-nil error, in which case
// no Done event is produced.
//
// Important: callers must consume the stream, either by iterating with Iter()
// (including breaking out of the loop early) or by calling Collect(). The
// underlying provider holds an open HTTP response body that is only released
// when the iterator completes or is abandoned via a loop break.
type ChatStream struct {
	provider ProviderName
	iterator iter.Seq2[Event, error]
}

// NewChatStream creates a ChatStream from a raw event iterator.
func NewChatStream(provider ProviderName, iterator iter.Seq2[Event, error]) *ChatStream {
	return &ChatStream{provider: provider, iterator: iterator}
}

// Provider returns the provider the stream belongs to.
func (stream *ChatStream) Provider() ProviderName {
	return stream.provider
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    if event.Type == ai.EventTextDelta { fmt.Print(event.Text) }
//	}
func (stream *ChatStream) Iter() iter.Seq2[Event, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated response.
// The Done event is authoritative for content and citations; deltas are only
// used when the stream failed before Done, in which case the partial response
// is returned together with the error.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	accumulated := &ChatResponse{Provider: stream.provider, Citations: []Citation{}}
	var text strings.Builder

	for event, err := range stream.iterator {
		if err != nil {
			accumulated.Content = text.String()
			return accumulated, err
		}

		switch event.Type {
		case EventTextDelta:
			text.WriteString(event.Text)
		case EventCitation:
			if event.Citation != nil {
				accumulated.Citations = append(accumulated.Citations, *event.Citation)
			}
		case EventLifecycle:
			if event.Lifecycle == LifecycleMessageDelta && event.Detail != "" {
				accumulated.StopReason = event.Detail
			}
		case EventDone:
			accumulated.Content = event.Text
			accumulated.Citations = event.Citations
			accumulated.Usage = event.Usage
			if event.StopReason != "" {
				accumulated.StopReason = event.StopReason
			}
			return accumulated, nil
		}
	}

	accumulated.Content = text.String()
	return accumulated, nil
}
