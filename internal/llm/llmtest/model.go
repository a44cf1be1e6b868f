// Package llmtest provides a scripted langchaingo model for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/chatblocks/internal/llm"
)

// ErrScriptExhausted is returned when the model is called more times than
// it has scripted turns.
var ErrScriptExhausted = errors.New("llmtest: no scripted turn left")

// Turn is one scripted response. Chunks are streamed in order and joined
// as the response content. ToolCalls are streamed after the chunks as JSON
// deltas and returned on the response.
type Turn struct {
	Chunks     []string
	ToolCalls  []llms.ToolCall
	StopReason string
	Err        error
	Usage      map[string]any
}

// Call records one invocation of the model.
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// Model replays Turns in order. It is safe for concurrent use.
type Model struct {
	mu    sync.Mutex
	turns []Turn
	calls []Call
}

var _ llms.Model = (*Model)(nil)

// NewModel creates a model that answers with the given turns.
func NewModel(turns ...Turn) *Model {
	return &Model{turns: turns}
}

// Text is a convenience for a turn that streams text and stops.
func Text(chunks ...string) Turn {
	return Turn{Chunks: chunks, StopReason: "stop"}
}

// ToolCall builds a function tool call.
func ToolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

// GenerateContent implements llms.Model.
func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{Messages: messages, Options: opts})
	if len(m.turns) == 0 {
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	turn := m.turns[0]
	m.turns = m.turns[1:]
	m.mu.Unlock()

	if turn.Err != nil {
		return nil, turn.Err
	}

	content := ""
	for _, chunk := range turn.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
		content += chunk
	}
	if opts.StreamingFunc != nil {
		for _, chunk := range toolCallChunks(turn.ToolCalls) {
			if err := opts.StreamingFunc(ctx, chunk); err != nil {
				return nil, err
			}
		}
	}

	info := turn.Usage
	if info == nil {
		info = map[string]any{"PromptTokens": 10, "CompletionTokens": 5}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        content,
			StopReason:     turn.StopReason,
			ToolCalls:      turn.ToolCalls,
			GenerationInfo: info,
		}},
	}, nil
}

type toolCallDelta struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// toolCallChunks encodes calls the way langchaingo's OpenAI client streams
// them: one delta opening each call, then one carrying its arguments.
func toolCallChunks(calls []llms.ToolCall) [][]byte {
	var chunks [][]byte
	for _, tc := range calls {
		if tc.FunctionCall == nil {
			continue
		}
		open := toolCallDelta{ID: tc.ID, Type: tc.Type}
		open.Function.Name = tc.FunctionCall.Name
		chunks = append(chunks, mustMarshal([]toolCallDelta{open}))

		if tc.FunctionCall.Arguments != "" {
			var args toolCallDelta
			args.Function.Arguments = tc.FunctionCall.Arguments
			chunks = append(chunks, mustMarshal([]toolCallDelta{args}))
		}
	}
	return chunks
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Call implements llms.Model.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns the recorded invocations.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Remaining returns how many scripted turns have not been used.
func (m *Model) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Source hands out models by catalog id.
type Source struct {
	Models map[string]llms.Model
	Err    error
}

var _ llm.Source = (*Source)(nil)

// Model implements llm.Source.
func (s *Source) Model(ctx context.Context, info llm.ModelInfo) (llms.Model, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	m, ok := s.Models[info.ID]
	if !ok {
		return nil, errors.New("llmtest: no model for " + info.ID)
	}
	return m, nil
}
