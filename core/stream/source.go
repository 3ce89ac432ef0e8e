package stream

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/childreth/Olly/providers/ai"
)

// defaultChunkSize is the read size used by ReaderSource.
const defaultChunkSize = 4096

// ChunkSource delivers raw response bytes in arbitrary chunks. Next returns
// io.EOF once no further bytes will arrive; a chunk may accompany io.EOF.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// ReaderSource adapts an io.Reader, such as an HTTP response body, into a
// ChunkSource.
type ReaderSource struct {
	reader io.Reader
	buffer []byte
}

// NewReaderSource wraps reader with the default chunk size.
func NewReaderSource(reader io.Reader) *ReaderSource {
	return &ReaderSource{reader: reader, buffer: make([]byte, defaultChunkSize)}
}

// Next implements ChunkSource. The returned slice is only valid until the
// next call.
func (r *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := r.reader.Read(r.buffer)
	return r.buffer[:n], err
}

// Events runs a session over source and yields every normalized event in
// order. A clean end of input yields the drained events and the Done event.
// A read failure or context expiry yields one classified error instead, and
// no Done event follows it. Breaking out of the loop stops reading.
func Events(ctx context.Context, session *Session, source ChunkSource) iter.Seq2[ai.Event, error] {
	return func(yield func(ai.Event, error) bool) {
		for {
			chunk, err := source.Next(ctx)
			for _, event := range session.Feed(ctx, chunk) {
				if !yield(event, nil) {
					return
				}
			}

			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield(ai.Event{}, ai.ClassifyTransportError(err))
				return
			}
		}

		for _, event := range session.Finish(ctx) {
			if !yield(event, nil) {
				return
			}
		}
	}
}
