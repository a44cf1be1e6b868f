package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/chatblocks/internal/models"
)

// Row types mirror the SurrealDB tables. They stay private to this package;
// callers only see internal/models types.

type chatRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     string                 `json:"title"`
	CreatedAt time.Time              `json:"created_at"`
}

type messageRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	ChatID    string                 `json:"chat_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
}

type voteRow struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	IsUpvoted bool   `json:"is_upvoted"`
}

type documentRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	DocID     string                 `json:"doc_id"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	UserID    string                 `json:"user_id"`
	CreatedAt time.Time              `json:"created_at"`
}

type suggestionRow struct {
	ID                surrealmodels.RecordID `json:"id"`
	DocumentID        string                 `json:"document_id"`
	DocumentCreatedAt time.Time              `json:"document_created_at"`
	OriginalText      string                 `json:"original_text"`
	SuggestedText     string                 `json:"suggested_text"`
	Description       *string                `json:"description,omitempty"`
	IsResolved        bool                   `json:"is_resolved"`
	UserID            string                 `json:"user_id"`
	CreatedAt         time.Time              `json:"created_at"`
}

// recordIDString extracts the string key from a SurrealDB RecordID.
func recordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

func (r chatRow) toModel() (models.Chat, error) {
	id, err := recordIDString(r.ID)
	if err != nil {
		return models.Chat{}, err
	}
	return models.Chat{ID: id, UserID: r.UserID, Title: r.Title, CreatedAt: r.CreatedAt.UTC()}, nil
}

func (r messageRow) toModel() (models.Message, error) {
	id, err := recordIDString(r.ID)
	if err != nil {
		return models.Message{}, err
	}
	var parts []models.ContentPart
	if err := json.Unmarshal([]byte(r.Content), &parts); err != nil {
		return models.Message{}, fmt.Errorf("decode message %s content: %w", id, err)
	}
	return models.Message{
		ID:        id,
		ChatID:    r.ChatID,
		Role:      models.Role(r.Role),
		Content:   parts,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func (r documentRow) toModel() models.Document {
	return models.Document{
		ID:        r.DocID,
		Title:     r.Title,
		Content:   r.Content,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r suggestionRow) toModel() (models.Suggestion, error) {
	id, err := recordIDString(r.ID)
	if err != nil {
		return models.Suggestion{}, err
	}
	s := models.Suggestion{
		ID:                id,
		DocumentID:        r.DocumentID,
		DocumentCreatedAt: r.DocumentCreatedAt.UTC(),
		OriginalText:      r.OriginalText,
		SuggestedText:     r.SuggestedText,
		IsResolved:        r.IsResolved,
		UserID:            r.UserID,
		CreatedAt:         r.CreatedAt.UTC(),
	}
	if r.Description != nil {
		s.Description = *r.Description
	}
	return s, nil
}

// firstResult returns the rows of the first statement in a query response.
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}
