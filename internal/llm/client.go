// Package llm adapts langchaingo models to the chat pipeline: a model
// catalog, provider construction, streamed steps with tool calls, nested
// text generation and structured array streaming.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

// Finish reasons reported for a step.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool-calls"
	FinishError     = "error"
	FinishOther     = "other"
)

// maxTitleLength bounds generated chat titles, in runes.
const maxTitleLength = 80

const titlePrompt = `You generate a short title for a conversation based on the user's first message.
The title must be at most 80 characters long and summarise the message.
Do not use quotes or colons. Reply with the title only.`

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// StepResult is the outcome of one model turn.
type StepResult struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        stream.Usage
}

// Client runs generation calls against one model.
type Client struct {
	model   llms.Model
	name    string
	metrics *metrics.Collector
}

// NewClient wraps a langchaingo model. name labels metrics; mc may be nil.
func NewClient(model llms.Model, name string, mc *metrics.Collector) *Client {
	return &Client{model: model, name: name, metrics: mc}
}

// Name returns the model label used for metrics.
func (c *Client) Name() string {
	return c.name
}

// StreamStep runs one streamed turn over the conversation. Text deltas are
// passed to onText as they arrive; an error from onText aborts the call.
func (c *Client) StreamStep(
	ctx context.Context,
	system string,
	conversation []models.Message,
	tools []llms.Tool,
	onText func(string) error,
) (*StepResult, error) {
	start := time.Now()

	var sent strings.Builder
	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			// Some providers pass tool call deltas through the same callback.
			if len(tools) > 0 && isToolCallChunk(chunk) {
				return nil
			}
			sent.Write(chunk)
			return onText(string(chunk))
		}),
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	resp, err := c.model.GenerateContent(ctx, ToMessageContent(system, conversation), opts...)
	if err != nil {
		return nil, fmt.Errorf("stream step: %w", wrapFatalError(err))
	}

	res := collectResponse(resp)
	// Text the provider did not stream, either at all or because it shared
	// a delta with a tool call, is delivered once the turn is complete.
	if rest, ok := strings.CutPrefix(res.Text, sent.String()); ok && rest != "" {
		if err := onText(rest); err != nil {
			return nil, err
		}
	}

	c.recordUsage(metrics.OpLLMStream, start, res.Usage)
	return res, nil
}

// isToolCallChunk reports whether a streamed chunk is a JSON encoded tool
// call delta rather than content. langchaingo's OpenAI client sends
// tool_calls deltas as an array and legacy function_call deltas as an object.
func isToolCallChunk(chunk []byte) bool {
	trimmed := bytes.TrimSpace(chunk)
	if len(trimmed) < 2 {
		return false
	}

	type function struct {
		Name      *string `json:"name"`
		Arguments *string `json:"arguments"`
	}
	strict := func(v any) bool {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		return dec.Decode(v) == nil && !dec.More()
	}

	switch trimmed[0] {
	case '[':
		var deltas []struct {
			ID       string    `json:"id"`
			Type     string    `json:"type"`
			Function *function `json:"function"`
		}
		if !strict(&deltas) || len(deltas) == 0 {
			return false
		}
		for _, d := range deltas {
			if d.Function == nil {
				return false
			}
		}
		return true
	case '{':
		var fc function
		return strict(&fc) && fc.Name != nil && fc.Arguments != nil
	}
	return false
}

// StreamText streams a plain completion with no tools and returns the full
// text.
func (c *Client) StreamText(ctx context.Context, system string, msgs []models.Message, onText func(string) error) (string, error) {
	res, err := c.StreamStep(ctx, system, msgs, nil, onText)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// StreamObjects asks for an array of objects matching schema and calls
// onItem for each valid element as soon as it is complete. Invalid elements
// are skipped. It returns the number of items delivered.
func (c *Client) StreamObjects(
	ctx context.Context,
	system, prompt string,
	schema ObjectSchema,
	onItem func(map[string]string) error,
) (int, error) {
	start := time.Now()

	var (
		scanner   elementScanner
		delivered int
		itemErr   error
		streamed  bool
	)
	feed := func(chunk []byte) error {
		for _, el := range scanner.Write(chunk) {
			if schema.MaxItems > 0 && delivered >= schema.MaxItems {
				return nil
			}
			item, err := schema.Validate(el)
			if err != nil {
				continue
			}
			if err := onItem(item); err != nil {
				itemErr = err
				return err
			}
			delivered++
		}
		return nil
	}

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system+"\n\n"+schema.instructions()),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := c.model.GenerateContent(ctx, msgs,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			streamed = true
			return feed(chunk)
		}),
	)
	if itemErr != nil {
		return delivered, itemErr
	}
	if err != nil {
		return delivered, fmt.Errorf("stream objects: %w", wrapFatalError(err))
	}

	res := collectResponse(resp)
	if !streamed {
		if err := feed([]byte(res.Text)); err != nil {
			return delivered, err
		}
	}

	c.recordUsage(metrics.OpLLMObject, start, res.Usage)
	return delivered, nil
}

// GenerateTitle produces a short chat title from the user's first message.
func (c *Client) GenerateTitle(ctx context.Context, userText string) (string, error) {
	start := time.Now()

	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, titlePrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userText),
	})
	if err != nil {
		return "", fmt.Errorf("generate title: %w", wrapFatalError(err))
	}

	res := collectResponse(resp)
	c.recordUsage(metrics.OpLLMGenerate, start, res.Usage)

	title := CleanTitle(res.Text)
	if title == "" {
		return "", errors.New("generate title: empty response")
	}
	return title, nil
}

// CleanTitle strips quotes and colons, collapses whitespace and truncates to
// the title length limit.
func CleanTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '`', ':', '“', '”':
			return -1
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxTitleLength {
		s = strings.TrimSpace(string([]rune(s)[:maxTitleLength]))
	}
	return s
}

func (c *Client) recordUsage(op string, start time.Time, u stream.Usage) {
	c.metrics.RecordLLMUsage(op, time.Since(start), int64(u.PromptTokens), int64(u.CompletionTokens))
	metrics.TokensUsed.WithLabelValues(c.name, "input").Add(float64(u.PromptTokens))
	metrics.TokensUsed.WithLabelValues(c.name, "output").Add(float64(u.CompletionTokens))
}

// collectResponse merges all choices of a response. Some providers return
// one choice per content block, so text and tool calls may be spread out.
func collectResponse(resp *llms.ContentResponse) *StepResult {
	res := &StepResult{}
	if resp == nil {
		res.FinishReason = FinishStop
		return res
	}

	var text strings.Builder
	stop := ""
	for _, ch := range resp.Choices {
		if ch == nil {
			continue
		}
		text.WriteString(ch.Content)
		for _, tc := range ch.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			id := tc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			args := json.RawMessage(tc.FunctionCall.Arguments)
			if len(strings.TrimSpace(tc.FunctionCall.Arguments)) == 0 {
				args = json.RawMessage(`{}`)
			}
			res.ToolCalls = append(res.ToolCalls, ToolCall{ID: id, Name: tc.FunctionCall.Name, Args: args})
		}
		if ch.StopReason != "" {
			stop = ch.StopReason
		}
		if u := usageFromInfo(ch.GenerationInfo); u != (stream.Usage{}) && res.Usage == (stream.Usage{}) {
			res.Usage = u
		}
	}

	res.Text = text.String()
	res.FinishReason = normalizeFinishReason(stop, len(res.ToolCalls) > 0)
	return res
}

func normalizeFinishReason(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return FinishToolCalls
	}
	switch strings.ToLower(reason) {
	case "", "stop", "end_turn", "stop_sequence", "complete":
		return FinishStop
	case "length", "max_tokens":
		return FinishLength
	case "tool_calls", "tool_use", "function_call":
		return FinishToolCalls
	default:
		return FinishOther
	}
}

// usageFromInfo reads token counts from provider-specific generation info.
func usageFromInfo(info map[string]any) stream.Usage {
	return stream.Usage{
		PromptTokens:     intFromInfo(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens"),
		CompletionTokens: intFromInfo(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens"),
	}
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

// ToMessageContent converts chat messages into langchaingo messages. Each
// tool result becomes its own tool message, which every provider accepts.
func ToMessageContent(system string, msgs []models.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs)+1)
	if system != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}

	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Text()))

		case models.RoleUser:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Text()))

		case models.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if text := m.Text(); text != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: text})
			}
			for _, call := range m.PartsOf(models.PartToolCall) {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   call.ToolCallID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      call.ToolName,
						Arguments: string(call.Args),
					},
				})
			}
			if len(mc.Parts) > 0 {
				out = append(out, mc)
			}

		case models.RoleTool:
			for _, res := range m.PartsOf(models.PartToolResult) {
				out = append(out, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: res.ToolCallID,
						Name:       res.ToolName,
						Content:    string(res.Result),
					}},
				})
			}
		}
	}
	return out
}
