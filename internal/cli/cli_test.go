package cli

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/chatblocks/internal/auth"
	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/llm/llmtest"
	"github.com/raphaelgruber/chatblocks/internal/server"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/stream"
	"github.com/raphaelgruber/chatblocks/internal/tools"
)

const testSecret = "cli-secret"

func mustPart(t *testing.T, code stream.Code, v any) stream.Part {
	t.Helper()
	p, err := stream.NewPart(code, v)
	require.NoError(t, err)
	return p
}

func TestPartPrinter(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		parts   func(t *testing.T) []stream.Part
		want    string
	}{
		{
			name: "text then finish ends the line",
			parts: func(t *testing.T) []stream.Part {
				return []stream.Part{
					mustPart(t, stream.CodeStartStep, stream.StartStep{MessageID: "m"}),
					mustPart(t, stream.CodeText, "Hello"),
					mustPart(t, stream.CodeText, " world"),
					mustPart(t, stream.CodeFinishMessage, stream.FinishMessage{FinishReason: "stop"}),
				}
			},
			want: "Hello world\n",
		},
		{
			name: "tool call on its own line",
			parts: func(t *testing.T) []stream.Part {
				return []stream.Part{
					mustPart(t, stream.CodeText, "Checking"),
					mustPart(t, stream.CodeToolCall, stream.ToolCall{ToolCallID: "c1", ToolName: "getWeather"}),
					mustPart(t, stream.CodeToolResult, stream.ToolResult{ToolCallID: "c1", Result: []byte(`{}`)}),
				}
			},
			want: "Checking\n→ getWeather\n",
		},
		{
			name:    "verbose shows results and usage",
			verbose: true,
			parts: func(t *testing.T) []stream.Part {
				return []stream.Part{
					mustPart(t, stream.CodeToolResult, stream.ToolResult{ToolCallID: "c1", Result: []byte(`{"ok":true}`)}),
					mustPart(t, stream.CodeFinishMessage, stream.FinishMessage{FinishReason: "stop", Usage: stream.Usage{PromptTokens: 3, CompletionTokens: 2}}),
				}
			},
			want: "← {\"ok\":true}\n[stop, 3 in / 2 out tokens]\n",
		},
		{
			name: "document title",
			parts: func(t *testing.T) []stream.Part {
				return []stream.Part{
					mustPart(t, stream.CodeData, []stream.Event{{Type: stream.EventTitle, Content: "Essay"}}),
					mustPart(t, stream.CodeData, []stream.Event{{Type: stream.EventTextDelta, Content: "draft"}}),
				}
			},
			want: "▍ Essay\n",
		},
		{
			name: "error part",
			parts: func(t *testing.T) []stream.Part {
				return []stream.Part{mustPart(t, stream.CodeError, "boom")}
			},
			want: "Error: boom\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := newPartPrinter(&buf, tt.verbose)
			for _, part := range tt.parts(t) {
				require.NoError(t, p.Print(part))
			}
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPartPrinter_RecordsError(t *testing.T) {
	p := newPartPrinter(io.Discard, false)
	require.NoError(t, p.Print(mustPart(t, stream.CodeError, "provider down")))
	assert.Equal(t, "provider down", p.Err)
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chatblocks "+Version+"\n", out)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AUTH_SECRET", testSecret)

	out, err := execute(t, "token", "alice")
	require.NoError(t, err)

	user, err := auth.NewTokens(testSecret, time.Hour).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestTokenCommand_NoSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	_, err := execute(t, "token", "alice")
	assert.Error(t, err)
}

func TestAskAndHistory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	model := llmtest.NewModel(llmtest.Text("Greeting"), llmtest.Text("Hi ", "there"))
	tokens := auth.NewTokens(testSecret, time.Hour)
	svc := chat.NewService(chat.Dependencies{
		Store:    mem,
		Catalog:  llm.DefaultCatalog(),
		Models:   &llmtest.Source{Models: map[string]llms.Model{"gpt-4o-mini": model}},
		Registry: tools.NewRegistry(&tools.Dependencies{Store: mem, Logger: logger}),
		Logger:   logger,
	}, chat.Config{})
	srv := httptest.NewServer(server.New(server.Dependencies{
		Store: mem, Chat: svc, Catalog: llm.DefaultCatalog(), Tokens: tokens, Logger: logger,
	}, server.Options{}))
	defer srv.Close()

	tok, _, err := tokens.Issue("alice")
	require.NoError(t, err)

	out, err := execute(t, "ask", "hello", "--server", srv.URL, "--token", tok)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Hi there\n"), "got %q", out)
	assert.Contains(t, out, "chat: ")

	out, err = execute(t, "history", "--server", srv.URL, "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "Chats (1):")
	assert.Contains(t, out, "Greeting")

	out, err = execute(t, "models", "--server", srv.URL, "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o-mini")
}
