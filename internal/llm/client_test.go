package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/llm/llmtest"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
)

func TestStreamStep_TextDeltas(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("Hel", "lo"))
	mc := metrics.NewCollector()
	c := llm.NewClient(model, "test", mc)

	var deltas []string
	res, err := c.StreamStep(context.Background(), "be brief",
		[]models.Message{models.TextMessage(models.RoleUser, "hi")}, nil,
		func(s string) error { deltas = append(deltas, s); return nil })
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", res.Text)
	assert.Equal(t, llm.FinishStop, res.FinishReason)
	assert.Equal(t, 10, res.Usage.PromptTokens)
	assert.Equal(t, 5, res.Usage.CompletionTokens)

	calls := model.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, calls[0].Messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, calls[0].Messages[1].Role)

	snap := mc.Snapshot()
	require.NotNil(t, snap.LLMStream)
	assert.Equal(t, int64(1), snap.LLMStream.Count)
}

func TestStreamStep_ToolCalls(t *testing.T) {
	model := llmtest.NewModel(llmtest.Turn{
		ToolCalls: []llms.ToolCall{
			llmtest.ToolCall("c1", "getWeather", `{"latitude":1,"longitude":2}`),
			llmtest.ToolCall("", "createDocument", ``),
		},
		StopReason: "tool_calls",
	})
	c := llm.NewClient(model, "test", nil)

	tools := []llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "getWeather"}}}
	var deltas []string
	res, err := c.StreamStep(context.Background(), "", nil, tools, func(s string) error {
		deltas = append(deltas, s)
		return nil
	})
	require.NoError(t, err)

	assert.Empty(t, deltas, "tool call deltas are not text")
	assert.Equal(t, llm.FinishToolCalls, res.FinishReason)
	require.Len(t, res.ToolCalls, 2)
	assert.Equal(t, "c1", res.ToolCalls[0].ID)
	assert.JSONEq(t, `{"latitude":1,"longitude":2}`, string(res.ToolCalls[0].Args))
	assert.True(t, strings.HasPrefix(res.ToolCalls[1].ID, "call_"), "missing ids are generated")
	assert.JSONEq(t, `{}`, string(res.ToolCalls[1].Args))

	require.Len(t, model.Calls(), 1)
	assert.Len(t, model.Calls()[0].Options.Tools, 1)
}

func TestStreamStep_ErrorsAreWrapped(t *testing.T) {
	model := llmtest.NewModel(llmtest.Turn{Err: errors.New("HTTP 401: invalid api key")})
	c := llm.NewClient(model, "test", nil)

	_, err := c.StreamStep(context.Background(), "", nil, nil, func(string) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrFatalAPI)
}

func TestStreamStep_OnTextErrorAborts(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("a", "b"))
	c := llm.NewClient(model, "test", nil)

	stop := errors.New("client gone")
	_, err := c.StreamStep(context.Background(), "", nil, nil, func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestStreamObjects(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text(
		`{"elements":[`,
		`{"originalSentence":"a","suggestedSentence":"A","description":"cap"},`,
		`{"originalSentence":"b"},`,
		`{"originalSentence":"c","suggestedSentence":"C","description":"cap"},`,
		`{"originalSentence":"d","suggestedSentence":"D","description":"cap"}`,
		`]}`,
	))
	c := llm.NewClient(model, "test", metrics.NewCollector())

	schema := llm.ObjectSchema{
		Fields:   []llm.Field{{Name: "originalSentence"}, {Name: "suggestedSentence"}, {Name: "description"}},
		MaxItems: 2,
	}
	var got []string
	n, err := c.StreamObjects(context.Background(), "suggest", "text", schema, func(item map[string]string) error {
		got = append(got, item["suggestedSentence"])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A", "C"}, got, "invalid element skipped, max items honoured")
}

func TestGenerateTitle(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text(`"Weather: Vienna today"`))
	c := llm.NewClient(model, "test", nil)

	title, err := c.GenerateTitle(context.Background(), "what's the weather in vienna?")
	require.NoError(t, err)
	assert.Equal(t, "Weather Vienna today", title)

	_, err = llm.NewClient(llmtest.NewModel(llmtest.Text("  ")), "test", nil).GenerateTitle(context.Background(), "x")
	assert.Error(t, err)
}

func TestCleanTitle(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := llm.CleanTitle(long)
	assert.LessOrEqual(t, len([]rune(got)), 80)
	assert.Equal(t, "a b", llm.CleanTitle("a\n\tb"))
}

func TestToMessageContent(t *testing.T) {
	msgs := []models.Message{
		models.TextMessage(models.RoleUser, "weather?"),
		{Role: models.RoleAssistant, Content: []models.ContentPart{
			models.ToolCallPart("c1", "getWeather", json.RawMessage(`{"latitude":1}`)),
			models.ToolCallPart("c2", "getWeather", json.RawMessage(`{"latitude":2}`)),
		}},
		{Role: models.RoleTool, Content: []models.ContentPart{
			models.ToolResultPart("c1", "getWeather", json.RawMessage(`{"t":1}`)),
			models.ToolResultPart("c2", "getWeather", json.RawMessage(`{"t":2}`)),
		}},
		{Role: models.RoleAssistant},
	}

	out := llm.ToMessageContent("sys", msgs)
	require.Len(t, out, 5, "system + user + assistant + one tool message per result; empty assistant dropped")
	assert.Equal(t, llms.ChatMessageTypeAI, out[2].Role)
	require.Len(t, out[2].Parts, 2)
	call, ok := out[2].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "getWeather", call.FunctionCall.Name)

	assert.Equal(t, llms.ChatMessageTypeTool, out[3].Role)
	resp, ok := out[4].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c2", resp.ToolCallID)
	assert.Equal(t, `{"t":2}`, resp.Content)
}

func TestCatalog(t *testing.T) {
	c := llm.DefaultCatalog()
	m, err := c.Lookup("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, m.Provider)

	_, err = c.Lookup("nope")
	assert.ErrorIs(t, err, llm.ErrModelNotFound)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - id: local
    label: Local Llama
    apiIdentifier: llama3.2
    provider: ollama
  - id: claude
    label: Claude
    apiIdentifier: claude-3-5-sonnet-latest
    provider: anthropic
`), 0o644))

	c, err := llm.LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Models(), 2)
	m, err := c.Lookup("local")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", m.APIIdentifier)

	require.NoError(t, os.WriteFile(path, []byte("models:\n  - id: x\n    apiIdentifier: y\n    provider: mystery\n"), 0o644))
	_, err = llm.LoadCatalog(path)
	assert.ErrorContains(t, err, "unsupported provider")
}
