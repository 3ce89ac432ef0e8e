package utils

import (
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var errEmptyJSON = errors.New("empty JSON input")

// RepairJSON attempts to turn a damaged JSON document into a valid one:
// truncated objects are closed, unterminated strings are terminated and
// trailing garbage is dropped. It is used on stream payloads that failed
// strict decoding, before falling back to marker scanning.
//
//	repaired, err := RepairJSON(`{"choices":[{"delta":{"content":"Hel`)
//	// repaired == `{"choices":[{"delta":{"content":"Hel"}}]}`
func RepairJSON(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errEmptyJSON
	}
	return jsonrepair.JSONRepair(trimmed)
}
