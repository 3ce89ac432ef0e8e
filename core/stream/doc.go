// Package stream turns raw provider response bytes into normalized events.
//
// A [Session] owns the per-call state: the unterminated tail of the byte
// stream, the accumulated text and the citation list. Bytes are fed in
// whatever chunks the transport delivers; a line is decoded only once its
// newline has arrived, so chunk boundaries never split a frame. Each complete
// line is stripped of SSE framing and decoded strictly by the provider's
// [ai.Dialect]. A line that fails strict decoding goes through a salvage
// pass (JSON repair, then a literal key scan) and is dropped and logged only
// if both fail; one bad frame never ends a session.
//
// When the source is exhausted the residual buffer is decoded without waiting
// for a terminator and exactly one Done event closes the session.
package stream
