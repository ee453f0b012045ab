// Package translator converts Code Assist CLI-protocol responses back
// into the standard Gemini API shape. The CLI protocol wraps every
// generation result in a {"response": ...} envelope; clients expect the
// bare object.
package translator

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrMissingEnvelope is returned when a body has no "response" field to
// unwrap. Callers decide whether to fail or pass the body through.
var ErrMissingEnvelope = errors.New("upstream body has no response envelope")

// Unary extracts the inner response object from a non-streaming CLI
// body. The returned slice references the raw JSON of the inner object.
func Unary(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMissingEnvelope
	}
	inner := gjson.GetBytes(body, "response")
	if !inner.Exists() {
		return nil, ErrMissingEnvelope
	}
	return []byte(inner.Raw), nil
}

// SSEData extracts the inner response object from one SSE data payload.
func SSEData(data string) (string, error) {
	if !gjson.Valid(data) {
		return "", ErrMissingEnvelope
	}
	inner := gjson.Get(data, "response")
	if !inner.Exists() {
		return "", ErrMissingEnvelope
	}
	return inner.Raw, nil
}
