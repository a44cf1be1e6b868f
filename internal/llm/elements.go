package llm

import (
	"encoding/json"
	"fmt"
)

// elementScanner pulls complete object elements out of a JSON array that
// arrives in arbitrary chunks. Everything before the first '[' is ignored,
// so both a bare array and {"elements": [...]} work.
type elementScanner struct {
	started  bool
	done     bool
	depth    int
	inString bool
	escaped  bool
	buf      []byte
}

// Write feeds a chunk and returns the elements completed by it, in order.
func (s *elementScanner) Write(chunk []byte) []json.RawMessage {
	var out []json.RawMessage
	for _, b := range chunk {
		if s.done {
			break
		}
		if !s.started {
			if b == '[' {
				s.started = true
			}
			continue
		}
		if s.depth == 0 {
			switch b {
			case '{':
				s.depth = 1
				s.buf = append(s.buf[:0], b)
			case ']':
				s.done = true
			}
			continue
		}

		s.buf = append(s.buf, b)
		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case b == '\\':
				s.escaped = true
			case b == '"':
				s.inString = false
			}
			continue
		}
		switch b {
		case '"':
			s.inString = true
		case '{', '[':
			s.depth++
		case '}', ']':
			s.depth--
			if s.depth == 0 {
				el := make(json.RawMessage, len(s.buf))
				copy(el, s.buf)
				out = append(out, el)
				s.buf = s.buf[:0]
			}
		}
	}
	return out
}

// Field is one required string property of a structured item.
type Field struct {
	Name        string
	Description string
}

// ObjectSchema describes the items of a structured array response. Every
// field is a required string.
type ObjectSchema struct {
	Fields   []Field
	MaxItems int
}

// Validate decodes raw and checks that every field is present as a string.
func (s ObjectSchema) Validate(raw json.RawMessage) (map[string]string, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode element: %w", err)
	}
	item := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := obj[f.Name]
		if !ok {
			return nil, fmt.Errorf("element missing field %q", f.Name)
		}
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("element field %q is %T, want string", f.Name, v)
		}
		item[f.Name] = str
	}
	return item, nil
}

// instructions renders the output contract appended to the system prompt.
func (s ObjectSchema) instructions() string {
	out := "Respond with only a JSON object of the form {\"elements\": [...]} and nothing else. Each element is an object with these string fields:\n"
	for _, f := range s.Fields {
		out += fmt.Sprintf("- %s: %s\n", f.Name, f.Description)
	}
	if s.MaxItems > 0 {
		out += fmt.Sprintf("Return at most %d elements.\n", s.MaxItems)
	}
	return out
}
