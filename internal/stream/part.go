// Package stream implements the data-stream wire protocol spoken to chat
// clients: a bounded pipe of protocol parts, a writer for the primary
// stream and the side channel used by tools to push UI events.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Code identifies the type of a protocol part. It is the prefix before the
// colon on each line.
type Code byte

const (
	CodeText          Code = '0'
	CodeData          Code = '2'
	CodeError         Code = '3'
	CodeToolCall      Code = '9'
	CodeToolResult    Code = 'a'
	CodeFinishMessage Code = 'd'
	CodeFinishStep    Code = 'e'
	CodeStartStep     Code = 'f'
)

// Header names and values sent with every streamed chat response.
const (
	HeaderChatID       = "chat-id"
	HeaderStreamFormat = "X-Vercel-AI-Data-Stream"
	StreamFormatV1     = "v1"
)

// Part is one line of the wire protocol: a code and a JSON payload.
type Part struct {
	Code    Code
	Payload json.RawMessage
}

// NewPart encodes v as the payload of a part.
func NewPart(code Code, v any) (Part, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Part{}, fmt.Errorf("encode part %c: %w", code, err)
	}
	return Part{Code: code, Payload: b}, nil
}

// Line renders the part as it appears on the wire, including the trailing
// newline.
func (p Part) Line() []byte {
	b := make([]byte, 0, len(p.Payload)+3)
	b = append(b, byte(p.Code), ':')
	b = append(b, p.Payload...)
	return append(b, '\n')
}

// Usage reports token consumption for a step or a whole message.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
	}
}

// ToolCall is the payload of a '9' part.
type ToolCall struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

// ToolResult is the payload of an 'a' part.
type ToolResult struct {
	ToolCallID string          `json:"toolCallId"`
	Result     json.RawMessage `json:"result"`
}

// StartStep is the payload of an 'f' part.
type StartStep struct {
	MessageID string `json:"messageId"`
}

// FinishStep is the payload of an 'e' part.
type FinishStep struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
	IsContinued  bool   `json:"isContinued"`
}

// FinishMessage is the payload of a 'd' part.
type FinishMessage struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

// ErrMalformedLine is returned by Decode for a line that is not "<code>:<json>".
var ErrMalformedLine = errors.New("malformed stream line")

// maxLineSize bounds a single decoded line. Tool results such as forecasts
// can be large.
const maxLineSize = 4 << 20

// Decode reads protocol lines from r and calls fn for each part in order.
// It stops at EOF, on the first malformed line, or when fn returns an error.
func Decode(r io.Reader, fn func(Part) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if len(line) < 3 || line[1] != ':' {
			return fmt.Errorf("%w: %q", ErrMalformedLine, truncate(line, 40))
		}
		payload := make(json.RawMessage, len(line)-2)
		copy(payload, line[2:])
		if !json.Valid(payload) {
			return fmt.Errorf("%w: invalid json %q", ErrMalformedLine, truncate(line, 40))
		}
		if err := fn(Part{Code: Code(line[0]), Payload: payload}); err != nil {
			return err
		}
	}
	return sc.Err()
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
