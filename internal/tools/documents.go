package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

const (
	createDocumentPrompt = "Write about the given topic. Markdown is supported. Use headings wherever appropriate."
	updateDocumentPrompt = "You are a helpful writing assistant. Rewrite the piece of writing according to the requested changes."

	msgDocumentNotFound = "Document not found"
)

// DocumentResult is returned by createDocument and updateDocument.
type DocumentResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreateDocumentInput defines the arguments of the createDocument tool.
type CreateDocumentInput struct {
	Title string `json:"title"`
}

// Validate implements Validator.
func (in *CreateDocumentInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

// UpdateDocumentInput defines the arguments of the updateDocument tool.
type UpdateDocumentInput struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Validate implements Validator.
func (in *UpdateDocumentInput) Validate() error {
	if in.ID == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return errors.New("description is required")
	}
	return nil
}

// NewCreateDocument creates the createDocument tool. The draft is streamed to
// the block editor as text-delta events and persisted as the first version.
func NewCreateDocument(deps *Dependencies) Tool {
	params := objectSchema(map[string]any{
		"title": prop("string", ""),
	}, "title")

	return newTool(NameCreateDocument, "Create a document for a writing activity", params,
		func(ctx context.Context, env Env, in CreateDocumentInput) (any, error) {
			id := uuid.NewString()

			for _, ev := range []stream.Event{
				{Type: stream.EventID, Content: id},
				{Type: stream.EventTitle, Content: in.Title},
				{Type: stream.EventClear, Content: ""},
			} {
				if err := env.Data.Append(ctx, ev); err != nil {
					return nil, fmt.Errorf("emit %s: %w", ev.Type, err)
				}
			}

			draft, err := streamDraft(ctx, env, createDocumentPrompt, []models.Message{
				models.TextMessage(models.RoleUser, in.Title),
			})
			if err != nil {
				return nil, err
			}

			if _, err := deps.Store.SaveDocument(ctx, models.Document{
				ID:      id,
				Title:   in.Title,
				Content: draft,
				UserID:  env.UserID,
			}); err != nil {
				return nil, fmt.Errorf("save document: %w", err)
			}

			deps.Logger.Info("document created", "id", id, "chars", len(draft))
			return DocumentResult{
				ID:      id,
				Title:   in.Title,
				Content: "A document was created and is now visible to the user.",
			}, nil
		})
}

// NewUpdateDocument creates the updateDocument tool. The rewritten text is
// saved as a new version under the same id.
func NewUpdateDocument(deps *Dependencies) Tool {
	params := objectSchema(map[string]any{
		"id":          prop("string", "The ID of the document to update"),
		"description": prop("string", "The description of changes that need to be made"),
	}, "id", "description")

	return newTool(NameUpdateDocument, "Update a document with the given description", params,
		func(ctx context.Context, env Env, in UpdateDocumentInput) (any, error) {
			doc, err := loadOwnedDocument(ctx, deps.Store, in.ID, env.UserID)
			if errors.Is(err, store.ErrNotFound) {
				return ErrorResult(msgDocumentNotFound, ""), nil
			}
			if err != nil {
				return nil, err
			}

			if err := env.Data.Append(ctx, stream.Event{Type: stream.EventClear, Content: doc.Title}); err != nil {
				return nil, fmt.Errorf("emit clear: %w", err)
			}

			draft, err := streamDraft(ctx, env, updateDocumentPrompt, []models.Message{
				models.TextMessage(models.RoleUser, in.Description),
				models.TextMessage(models.RoleUser, doc.Content),
			})
			if err != nil {
				return nil, err
			}

			if _, err := deps.Store.SaveDocument(ctx, models.Document{
				ID:      doc.ID,
				Title:   doc.Title,
				Content: draft,
				UserID:  env.UserID,
			}); err != nil {
				return nil, fmt.Errorf("save document: %w", err)
			}

			deps.Logger.Info("document updated", "id", doc.ID, "chars", len(draft))
			return DocumentResult{
				ID:      doc.ID,
				Title:   doc.Title,
				Content: "The document has been updated successfully.",
			}, nil
		})
}

// streamDraft runs a nested generation, forwarding each delta to the block
// editor, and emits finish once the text is complete.
func streamDraft(ctx context.Context, env Env, system string, msgs []models.Message) (string, error) {
	draft, err := env.Model.StreamText(ctx, system, msgs, func(delta string) error {
		return env.Data.Append(ctx, stream.Event{Type: stream.EventTextDelta, Content: delta})
	})
	if err != nil {
		return "", fmt.Errorf("generate draft: %w", err)
	}
	if err := env.Data.Append(ctx, stream.Event{Type: stream.EventFinish, Content: ""}); err != nil {
		return "", fmt.Errorf("emit finish: %w", err)
	}
	return draft, nil
}

// loadOwnedDocument returns the latest version of a document. Documents of
// other users are reported as not found.
func loadOwnedDocument(ctx context.Context, s store.Store, id, userID string) (*models.Document, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != "" && userID != "" && doc.UserID != userID {
		return nil, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return doc, nil
}
