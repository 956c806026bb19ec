// Package safety holds the validated value types that every user-supplied
// scalar must be parsed into before it reaches the task core.
//
// Constructors never log or echo the rejected input; a ValidationError only
// carries the field name and a short reason.
package safety

import (
	"encoding/json"
	"unicode/utf8"
)

// ValidationError is returned when a boundary value fails validation.
// Error() yields the wire form "field: reason".
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// decodeString unmarshals a JSON string. A non-string literal is reported
// against field instead of surfacing the decoder's type error.
func decodeString(data []byte, field string) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", Invalid(field, "invalid")
	}
	return s, nil
}
