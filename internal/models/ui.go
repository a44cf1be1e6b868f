package models

import "encoding/json"

// Tool invocation states as reported by the chat UI.
const (
	InvocationCall   = "call"
	InvocationResult = "result"
)

// ToolInvocation is the UI's view of a tool call and, once available, its result.
type ToolInvocation struct {
	State      string          `json:"state"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// UIMessage is a message as sent by the chat UI: flat text content plus
// optional tool invocations.
type UIMessage struct {
	ID              string           `json:"id,omitempty"`
	Role            Role             `json:"role"`
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
	CreatedAt       string           `json:"createdAt,omitempty"`
}

// ToCoreMessages converts UI messages into model messages. An assistant
// message with tool invocations becomes an assistant message carrying the
// calls followed by a tool message carrying their results. Invocations that
// never produced a result are dropped.
func ToCoreMessages(ui []UIMessage) []Message {
	out := make([]Message, 0, len(ui))
	for _, m := range ui {
		switch m.Role {
		case RoleUser, RoleSystem:
			out = append(out, TextMessage(m.Role, m.Content))

		case RoleAssistant:
			if len(m.ToolInvocations) == 0 {
				out = append(out, TextMessage(RoleAssistant, m.Content))
				continue
			}

			assistant := Message{Role: RoleAssistant}
			if m.Content != "" {
				assistant.Content = append(assistant.Content, TextPart(m.Content))
			}
			tool := Message{Role: RoleTool}
			for _, inv := range m.ToolInvocations {
				if inv.State != InvocationResult {
					continue
				}
				assistant.Content = append(assistant.Content, ToolCallPart(inv.ToolCallID, inv.ToolName, inv.Args))
				tool.Content = append(tool.Content, ToolResultPart(inv.ToolCallID, inv.ToolName, inv.Result))
			}
			if len(assistant.Content) > 0 {
				out = append(out, assistant)
			}
			if len(tool.Content) > 0 {
				out = append(out, tool)
			}
		}
	}
	return out
}

// ToUIMessages converts persisted messages back into the UI representation.
// Tool results are folded into the invocation of the assistant message that
// issued the call; tool messages themselves are not returned.
func ToUIMessages(msgs []Message) []UIMessage {
	out := make([]UIMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleTool {
			for _, res := range m.PartsOf(PartToolResult) {
				attachResult(out, res)
			}
			continue
		}

		ui := UIMessage{ID: m.ID, Role: m.Role, Content: m.Text()}
		if !m.CreatedAt.IsZero() {
			ui.CreatedAt = m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		}
		for _, call := range m.PartsOf(PartToolCall) {
			ui.ToolInvocations = append(ui.ToolInvocations, ToolInvocation{
				State:      InvocationCall,
				ToolCallID: call.ToolCallID,
				ToolName:   call.ToolName,
				Args:       call.Args,
			})
		}
		out = append(out, ui)
	}
	return out
}

func attachResult(out []UIMessage, res ContentPart) {
	for i := len(out) - 1; i >= 0; i-- {
		for j := range out[i].ToolInvocations {
			inv := &out[i].ToolInvocations[j]
			if inv.ToolCallID == res.ToolCallID {
				inv.State = InvocationResult
				inv.Result = res.Result
				return
			}
		}
	}
}
