package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/store"
)

// CreateChat inserts a new chat owned by userID.
func (c *Client) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	defer c.timed(metrics.OpDBWrite)()

	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		CREATE type::record("chat", $id) SET
			user_id = $user_id,
			title = $title,
			created_at = time::now()
	`, map[string]any{
		"id":      uuid.NewString(),
		"user_id": userID,
		"title":   title,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("create chat: no record returned")
	}
	chat, err := rows[0].toModel()
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &chat, nil
}

// GetChat retrieves a chat by ID.
func (c *Client) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	defer c.timed(metrics.OpDBRead)()

	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		SELECT * FROM type::record("chat", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("chat %s: %w", id, store.ErrNotFound)
	}
	chat, err := rows[0].toModel()
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &chat, nil
}

// ListChats returns the user's chats, newest first.
func (c *Client) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	defer c.timed(metrics.OpDBRead)()

	results, err := surrealdb.Query[[]chatRow](ctx, c.db, `
		SELECT * FROM chat WHERE user_id = $user_id ORDER BY created_at DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	chats := make([]models.Chat, 0, len(rows))
	for _, r := range rows {
		chat, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("list chats: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// DeleteChat removes a chat together with its votes and messages in one
// transaction.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	if _, err := c.GetChat(ctx, id); err != nil {
		return err
	}

	defer c.timed(metrics.OpDBWrite)()
	_, err := surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		DELETE vote WHERE chat_id = $id;
		DELETE message WHERE chat_id = $id;
		DELETE type::record("chat", $id);
		COMMIT TRANSACTION;
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete chat: %w", wrapQueryError(err))
	}
	return nil
}

// chatExists reports whether a chat record exists.
func (c *Client) chatExists(ctx context.Context, id string) (bool, error) {
	results, err := surrealdb.Query[[]struct{ C int }](ctx, c.db, `
		SELECT count() AS c FROM type::record("chat", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("check chat exists: %w", wrapQueryError(err))
	}
	rows := firstResult(results)
	return len(rows) > 0 && rows[0].C > 0, nil
}

// SaveMessages inserts a batch of messages. Every referenced chat must exist.
// Creation times are assigned here, strictly increasing within the batch so
// that reads preserve insertion order.
func (c *Client) SaveMessages(ctx context.Context, msgs []models.Message) ([]string, error) {
	if len(msgs) == 0 {
		return []string{}, nil
	}

	checked := make(map[string]bool)
	for _, m := range msgs {
		if checked[m.ChatID] {
			continue
		}
		ok, err := c.chatExists(ctx, m.ChatID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("chat %s: %w", m.ChatID, store.ErrNotFound)
		}
		checked[m.ChatID] = true
	}

	defer c.timed(metrics.OpDBWrite)()

	now := time.Now().UTC()
	ids := make([]string, 0, len(msgs))
	rows := make([]map[string]any, 0, len(msgs))
	for i, m := range msgs {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		content, err := json.Marshal(m.Content)
		if err != nil {
			return nil, fmt.Errorf("encode message content: %w", err)
		}
		rows = append(rows, map[string]any{
			"id":         surrealmodels.NewRecordID("message", id),
			"chat_id":    m.ChatID,
			"role":       string(m.Role),
			"content":    string(content),
			"created_at": now.Add(time.Duration(i) * time.Microsecond),
		})
		ids = append(ids, id)
	}

	if _, err := surrealdb.Query[any](ctx, c.db, `INSERT INTO message $rows`, map[string]any{"rows": rows}); err != nil {
		return nil, fmt.Errorf("save messages: %w", wrapQueryError(err))
	}
	return ids, nil
}

// ListMessages returns a chat's messages in creation order.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	defer c.timed(metrics.OpDBRead)()

	results, err := surrealdb.Query[[]messageRow](ctx, c.db, `
		SELECT * FROM message WHERE chat_id = $chat_id ORDER BY created_at ASC
	`, map[string]any{"chat_id": chatID})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	msgs := make([]models.Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// VoteMessage upserts the vote keyed by (chatID, messageID).
func (c *Client) VoteMessage(ctx context.Context, chatID, messageID string, upvoted bool) error {
	defer c.timed(metrics.OpDBWrite)()

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("vote", [$chat_id, $message_id]) SET
			chat_id = $chat_id,
			message_id = $message_id,
			is_upvoted = $is_upvoted
	`, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"is_upvoted": upvoted,
	})
	if err != nil {
		return fmt.Errorf("vote message: %w", wrapQueryError(err))
	}
	return nil
}

// ListVotes returns every vote recorded for a chat.
func (c *Client) ListVotes(ctx context.Context, chatID string) ([]models.Vote, error) {
	defer c.timed(metrics.OpDBRead)()

	results, err := surrealdb.Query[[]voteRow](ctx, c.db, `
		SELECT chat_id, message_id, is_upvoted FROM vote WHERE chat_id = $chat_id
	`, map[string]any{"chat_id": chatID})
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	votes := make([]models.Vote, 0, len(rows))
	for _, r := range rows {
		votes = append(votes, models.Vote{ChatID: r.ChatID, MessageID: r.MessageID, IsUpvoted: r.IsUpvoted})
	}
	return votes, nil
}
