package tools

import (
	"encoding/json"
	"fmt"
)

// errorResult is the JSON shape of every failed tool call.
type errorResult struct {
	Error string `json:"error"`
}

// ErrorResult builds a tool result the model can read and recover from.
// If hint is non-empty, formats as "{msg}. {hint}".
func ErrorResult(msg, hint string) json.RawMessage {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	b, _ := json.Marshal(errorResult{Error: text})
	return b
}

// JSONResult encodes a successful result.
func JSONResult(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return b, nil
}

// IsErrorResult reports whether a result carries an error field.
func IsErrorResult(raw json.RawMessage) bool {
	var r errorResult
	return json.Unmarshal(raw, &r) == nil && r.Error != ""
}
