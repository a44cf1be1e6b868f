package stream

import (
	"context"
	"encoding/json"
)

// Writer emits the primary protocol parts of a chat response onto a pipe.
type Writer struct {
	pipe *Pipe
}

// NewWriter creates a writer on top of pipe.
func NewWriter(pipe *Pipe) *Writer {
	return &Writer{pipe: pipe}
}

func (w *Writer) send(ctx context.Context, code Code, v any) error {
	part, err := NewPart(code, v)
	if err != nil {
		return err
	}
	return w.pipe.Send(ctx, part)
}

// Text emits a text delta.
func (w *Writer) Text(ctx context.Context, delta string) error {
	if delta == "" {
		return nil
	}
	return w.send(ctx, CodeText, delta)
}

// ToolCall announces a complete tool call.
func (w *Writer) ToolCall(ctx context.Context, id, name string, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return w.send(ctx, CodeToolCall, ToolCall{ToolCallID: id, ToolName: name, Args: args})
}

// ToolResult reports the result of a previously announced tool call.
func (w *Writer) ToolResult(ctx context.Context, id string, result json.RawMessage) error {
	return w.send(ctx, CodeToolResult, ToolResult{ToolCallID: id, Result: result})
}

// StartStep opens a model step.
func (w *Writer) StartStep(ctx context.Context, messageID string) error {
	return w.send(ctx, CodeStartStep, StartStep{MessageID: messageID})
}

// FinishStep closes a model step. isContinued is true when another step
// follows.
func (w *Writer) FinishStep(ctx context.Context, reason string, usage Usage, isContinued bool) error {
	return w.send(ctx, CodeFinishStep, FinishStep{FinishReason: reason, Usage: usage, IsContinued: isContinued})
}

// FinishMessage ends the assistant message.
func (w *Writer) FinishMessage(ctx context.Context, reason string, usage Usage) error {
	return w.send(ctx, CodeFinishMessage, FinishMessage{FinishReason: reason, Usage: usage})
}

// Error emits an error part. The message is shown to the user as is.
func (w *Writer) Error(ctx context.Context, msg string) error {
	return w.send(ctx, CodeError, msg)
}
