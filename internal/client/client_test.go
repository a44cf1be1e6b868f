package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/chatblocks/internal/auth"
	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/llm/llmtest"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/server"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/stream"
	"github.com/raphaelgruber/chatblocks/internal/tools"
)

const testModel = "gpt-4o-mini"

func startServer(t *testing.T, turns ...llmtest.Turn) (*httptest.Server, *auth.Tokens) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	mc := metrics.NewCollector()
	tokens := auth.NewTokens("client-secret", time.Hour)
	model := llmtest.NewModel(turns...)

	svc := chat.NewService(chat.Dependencies{
		Store:    mem,
		Catalog:  llm.DefaultCatalog(),
		Models:   &llmtest.Source{Models: map[string]llms.Model{testModel: model}},
		Registry: tools.NewRegistry(&tools.Dependencies{Store: mem, Logger: logger}),
		Logger:   logger,
		Metrics:  mc,
	}, chat.Config{})

	srv := httptest.NewServer(server.New(server.Dependencies{
		Store:   mem,
		Chat:    svc,
		Catalog: llm.DefaultCatalog(),
		Tokens:  tokens,
		Metrics: mc,
		Logger:  logger,
	}, server.Options{}))
	t.Cleanup(srv.Close)
	return srv, tokens
}

func newClient(t *testing.T, srv *httptest.Server, tokens *auth.Tokens, user string) *Client {
	t.Helper()
	tok, _, err := tokens.Issue(user)
	require.NoError(t, err)
	return New(srv.URL, tok)
}

func request(text string) chat.Request {
	return chat.Request{ModelID: testModel, Messages: []models.UIMessage{{Role: models.RoleUser, Content: text}}}
}

func collectText(parts *[]stream.Part) func(stream.Part) error {
	return func(p stream.Part) error {
		*parts = append(*parts, p)
		return nil
	}
}

func TestChatRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Client, context.Context, chat.Request, func(stream.Part) error) (string, error)
	}{
		{name: "http", run: (*Client).Chat},
		{name: "websocket", run: (*Client).ChatWS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, tokens := startServer(t, llmtest.Text("Title"), llmtest.Text("Hello ", "there"))
			c := newClient(t, srv, tokens, "alice")
			ctx := context.Background()

			var parts []stream.Part
			chatID, err := tt.run(c, ctx, request("hi"), collectText(&parts))
			require.NoError(t, err)
			require.NotEmpty(t, chatID)
			require.Len(t, parts, 5)
			assert.Equal(t, stream.CodeFinishMessage, parts[4].Code)

			history, err := c.History(ctx)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, chatID, history[0].ID)
			assert.Equal(t, "Title", history[0].Title)

			detail, err := c.GetChat(ctx, chatID)
			require.NoError(t, err)
			require.Len(t, detail.Messages, 2)
			assert.Equal(t, "Hello there", detail.Messages[1].Content)

			require.NoError(t, c.Vote(ctx, chatID, "m-1", true))
			require.NoError(t, c.DeleteChat(ctx, chatID))
			_, err = c.GetChat(ctx, chatID)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusNotFound, apiErr.Status)
		})
	}
}

func TestChatErrors(t *testing.T) {
	srv, tokens := startServer(t)
	ctx := context.Background()
	bad := chat.Request{ModelID: "unknown", Messages: request("x").Messages}

	tests := []struct {
		name       string
		client     *Client
		run        func(*Client, context.Context, chat.Request, func(stream.Part) error) (string, error)
		wantStatus int
	}{
		{name: "http unknown model", client: newClient(t, srv, tokens, "alice"), run: (*Client).Chat, wantStatus: http.StatusNotFound},
		{name: "ws unknown model", client: newClient(t, srv, tokens, "alice"), run: (*Client).ChatWS, wantStatus: http.StatusNotFound},
		{name: "http no token", client: New(srv.URL, ""), run: (*Client).Chat, wantStatus: http.StatusUnauthorized},
		{name: "ws no token", client: New(srv.URL, ""), run: (*Client).ChatWS, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.run(tt.client, ctx, bad, func(stream.Part) error { return nil })
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
		})
	}
}

func TestModelsAndStats(t *testing.T) {
	srv, tokens := startServer(t)
	c := newClient(t, srv, tokens, "alice")
	ctx := context.Background()

	catalog, err := c.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, testModel, catalog[0].ID)

	snap, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestDocumentsEmpty(t *testing.T) {
	srv, tokens := startServer(t)
	c := newClient(t, srv, tokens, "alice")
	ctx := context.Background()

	_, err := c.DocumentVersions(ctx, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	sugg, err := c.Suggestions(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, sugg)
}
