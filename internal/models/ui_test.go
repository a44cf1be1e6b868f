package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCoreMessages(t *testing.T) {
	args := json.RawMessage(`{"latitude":1,"longitude":2}`)
	result := json.RawMessage(`{"temp":20}`)

	ui := []UIMessage{
		{Role: RoleUser, Content: "weather?"},
		{Role: RoleAssistant, Content: "checking", ToolInvocations: []ToolInvocation{
			{State: InvocationResult, ToolCallID: "call-1", ToolName: "getWeather", Args: args, Result: result},
			{State: InvocationCall, ToolCallID: "call-2", ToolName: "getWeather", Args: args},
		}},
		{Role: RoleAssistant, Content: "It is 20 degrees."},
		{Role: RoleUser, Content: "thanks"},
	}

	core := ToCoreMessages(ui)
	require.Len(t, core, 5)

	assert.Equal(t, RoleUser, core[0].Role)
	assert.Equal(t, "weather?", core[0].Text())

	assert.Equal(t, RoleAssistant, core[1].Role)
	calls := core[1].PartsOf(PartToolCall)
	require.Len(t, calls, 1, "pending invocation should be dropped")
	assert.Equal(t, "call-1", calls[0].ToolCallID)
	assert.Equal(t, "checking", core[1].Text())

	assert.Equal(t, RoleTool, core[2].Role)
	results := core[2].PartsOf(PartToolResult)
	require.Len(t, results, 1)
	assert.JSONEq(t, `{"temp":20}`, string(results[0].Result))

	assert.Equal(t, "It is 20 degrees.", core[3].Text())
	assert.Equal(t, RoleUser, core[4].Role)
}

func TestToUIMessages(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "m1", Role: RoleUser, Content: []ContentPart{TextPart("hi")}, CreatedAt: created},
		{ID: "m2", Role: RoleAssistant, Content: []ContentPart{
			TextPart("let me check"),
			ToolCallPart("c1", "getWeather", json.RawMessage(`{}`)),
		}},
		{ID: "m3", Role: RoleTool, Content: []ContentPart{
			ToolResultPart("c1", "getWeather", json.RawMessage(`{"ok":true}`)),
		}},
	}

	ui := ToUIMessages(msgs)
	require.Len(t, ui, 2)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", ui[0].CreatedAt)
	require.Len(t, ui[1].ToolInvocations, 1)
	assert.Equal(t, InvocationResult, ui[1].ToolInvocations[0].State)
	assert.JSONEq(t, `{"ok":true}`, string(ui[1].ToolInvocations[0].Result))
}

func TestMostRecentUserMessage(t *testing.T) {
	tests := []struct {
		name string
		msgs []Message
		want string
	}{
		{"empty", nil, ""},
		{"no user", []Message{TextMessage(RoleAssistant, "hello")}, ""},
		{"last user wins", []Message{
			TextMessage(RoleUser, "first"),
			TextMessage(RoleAssistant, "reply"),
			TextMessage(RoleUser, "second"),
		}, "second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MostRecentUserMessage(tt.msgs)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Text())
		})
	}
}
