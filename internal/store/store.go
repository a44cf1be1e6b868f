// Package store defines the persistence gateway used by the chat pipeline
// and the HTTP surface, plus an in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/raphaelgruber/chatblocks/internal/models"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence gateway. Every call is an independent atomic
// unit; no operation spans more than one call.
type Store interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// Chats
	CreateChat(ctx context.Context, userID, title string) (*models.Chat, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	DeleteChat(ctx context.Context, id string) error

	// Messages. SaveMessages fails with ErrNotFound if a message references
	// a chat that does not exist.
	SaveMessages(ctx context.Context, msgs []models.Message) ([]string, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)

	// Votes. VoteMessage overwrites an existing vote for the same pair.
	VoteMessage(ctx context.Context, chatID, messageID string, upvoted bool) error
	ListVotes(ctx context.Context, chatID string) ([]models.Vote, error)

	// Documents. SaveDocument appends a version and returns it with its
	// creation time set.
	SaveDocument(ctx context.Context, doc models.Document) (*models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocumentVersions(ctx context.Context, id string) ([]models.Document, error)
	DeleteDocumentsAfter(ctx context.Context, id string, after time.Time) error

	// Suggestions
	SaveSuggestions(ctx context.Context, suggestions []models.Suggestion) error
	ListSuggestions(ctx context.Context, documentID string) ([]models.Suggestion, error)
}
