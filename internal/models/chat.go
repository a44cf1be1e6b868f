// Package models defines the records exchanged between the chat pipeline,
// the persistence gateway and the HTTP surface.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies the kind of a content part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
)

// Chat is a conversation owned by a single user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContentPart is one element of a message body. Which fields are set
// depends on Type.
type ContentPart struct {
	Type       PartType        `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Message is a single persisted chat message.
type Message struct {
	ID        string        `json:"id"`
	ChatID    string        `json:"chatId"`
	Role      Role          `json:"role"`
	Content   []ContentPart `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ToolCallPart builds a tool-call content part.
func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	return ContentPart{Type: PartToolCall, ToolCallID: id, ToolName: name, Args: args}
}

// ToolResultPart builds a tool-result content part.
func ToolResultPart(id, name string, result json.RawMessage) ContentPart {
	return ContentPart{Type: PartToolResult, ToolCallID: id, ToolName: name, Result: result}
}

// TextMessage builds a message with a single text part.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentPart{TextPart(text)}}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// PartsOf returns the content parts of the given type, in order.
func (m Message) PartsOf(t PartType) []ContentPart {
	var out []ContentPart
	for _, p := range m.Content {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// MostRecentUserMessage returns the last user-authored message, or nil.
func MostRecentUserMessage(msgs []Message) *Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return &msgs[i]
		}
	}
	return nil
}

// Vote records a user's rating of an assistant message.
type Vote struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	IsUpvoted bool   `json:"isUpvoted"`
}
