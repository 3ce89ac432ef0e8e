package ai

// Dialect decodes one provider's stream payloads. Each provider models its
// event grammar as its own closed set of variants; unrelated providers never
// share a looser structure.
type Dialect interface {
	// Provider identifies the provider whose grammar this is.
	Provider() ProviderName

	// Decode strictly decodes a single payload (one line with any "data:"
	// prefix removed) into zero or more events. Text and citation events are
	// returned in source order. A payload that does not match the grammar
	// returns an error wrapping ErrMalformedFrame; recognized-but-ignored
	// variants return no events and no error.
	Decode(payload string) ([]Event, error)

	// SalvageMarkers lists the literal key markers that precede a text value
	// in this grammar, tried in order when strict decoding fails.
	SalvageMarkers() []string
}
