//go:build integration

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/store"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil, metrics.NewCollector())
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func TestPing(t *testing.T) {
	require.NoError(t, testDB.Ping(context.Background()))
}

func TestChatAndMessages(t *testing.T) {
	ctx := context.Background()

	chat, err := testDB.CreateChat(ctx, "alice", "Weather talk")
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.False(t, chat.CreatedAt.IsZero())

	got, err := testDB.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weather talk", got.Title)

	user := models.TextMessage(models.RoleUser, "weather in Vienna?")
	user.ChatID = chat.ID
	assistant := models.Message{
		ChatID: chat.ID,
		Role:   models.RoleAssistant,
		Content: []models.ContentPart{
			models.ToolCallPart("c1", "getWeather", json.RawMessage(`{"latitude":48.2,"longitude":16.4}`)),
		},
	}
	tool := models.Message{
		ChatID:  chat.ID,
		Role:    models.RoleTool,
		Content: []models.ContentPart{models.ToolResultPart("c1", "getWeather", json.RawMessage(`{"current":{"temperature_2m":12}}`))},
	}

	ids, err := testDB.SaveMessages(ctx, []models.Message{user, assistant, tool})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	msgs, err := testDB.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, models.RoleTool, msgs[2].Role)
	assert.JSONEq(t, `{"latitude":48.2,"longitude":16.4}`, string(msgs[1].PartsOf(models.PartToolCall)[0].Args))

	_, err = testDB.SaveMessages(ctx, []models.Message{{ChatID: "missing", Role: models.RoleUser}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestVoteUpsert(t *testing.T) {
	ctx := context.Background()

	chat, err := testDB.CreateChat(ctx, "alice", "votes")
	require.NoError(t, err)

	require.NoError(t, testDB.VoteMessage(ctx, chat.ID, "m1", true))
	require.NoError(t, testDB.VoteMessage(ctx, chat.ID, "m1", false))

	votes, err := testDB.ListVotes(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.False(t, votes[0].IsUpvoted)
}

func TestDeleteChatCascades(t *testing.T) {
	ctx := context.Background()

	chat, err := testDB.CreateChat(ctx, "alice", "doomed")
	require.NoError(t, err)
	msg := models.TextMessage(models.RoleUser, "hi")
	msg.ChatID = chat.ID
	ids, err := testDB.SaveMessages(ctx, []models.Message{msg})
	require.NoError(t, err)
	require.NoError(t, testDB.VoteMessage(ctx, chat.ID, ids[0], true))

	require.NoError(t, testDB.DeleteChat(ctx, chat.ID))

	_, err = testDB.GetChat(ctx, chat.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	msgs, err := testDB.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	votes, err := testDB.ListVotes(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	assert.ErrorIs(t, testDB.DeleteChat(ctx, chat.ID), store.ErrNotFound)
}

func TestDocumentRewind(t *testing.T) {
	ctx := context.Background()

	v1, err := testDB.SaveDocument(ctx, models.Document{ID: "doc-rewind", Title: "Essay", Content: "one", UserID: "alice"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	v2, err := testDB.SaveDocument(ctx, models.Document{ID: "doc-rewind", Title: "Essay", Content: "two", UserID: "alice"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = testDB.SaveDocument(ctx, models.Document{ID: "doc-rewind", Title: "Essay", Content: "three", UserID: "alice"})
	require.NoError(t, err)

	latest, err := testDB.GetDocument(ctx, "doc-rewind")
	require.NoError(t, err)
	assert.Equal(t, "three", latest.Content)

	require.NoError(t, testDB.SaveSuggestions(ctx, []models.Suggestion{{
		DocumentID:        "doc-rewind",
		DocumentCreatedAt: v2.CreatedAt,
		OriginalText:      "two",
		SuggestedText:     "Two.",
		Description:       "capitalise",
		UserID:            "alice",
	}}))
	suggestions, err := testDB.ListSuggestions(ctx, "doc-rewind")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "capitalise", suggestions[0].Description)
	assert.False(t, suggestions[0].IsResolved)

	require.NoError(t, testDB.DeleteDocumentsAfter(ctx, "doc-rewind", v1.CreatedAt))

	versions, err := testDB.ListDocumentVersions(ctx, "doc-rewind")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "one", versions[0].Content)

	suggestions, err = testDB.ListSuggestions(ctx, "doc-rewind")
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	_, err = testDB.GetDocument(ctx, "no-such-doc")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListChatsNewestFirst(t *testing.T) {
	ctx := context.Background()

	first, err := testDB.CreateChat(ctx, "carol", "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := testDB.CreateChat(ctx, "carol", "second")
	require.NoError(t, err)

	chats, err := testDB.ListChats(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID)
	assert.Equal(t, first.ID, chats[1].ID)
}
