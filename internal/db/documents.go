package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/store"
)

// SaveDocument appends a new version of doc. The returned document carries
// the server-assigned creation time.
func (c *Client) SaveDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	defer c.timed(metrics.OpDBWrite)()

	results, err := surrealdb.Query[[]documentRow](ctx, c.db, `
		CREATE type::record("document", $row_id) SET
			doc_id = $doc_id,
			title = $title,
			content = $content,
			user_id = $user_id,
			created_at = time::now()
	`, map[string]any{
		"row_id":  uuid.NewString(),
		"doc_id":  doc.ID,
		"title":   doc.Title,
		"content": doc.Content,
		"user_id": doc.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("save document: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("save document: no record returned")
	}
	saved := rows[0].toModel()
	return &saved, nil
}

// GetDocument returns the latest version of a document.
func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	defer c.timed(metrics.OpDBRead)()

	results, err := surrealdb.Query[[]documentRow](ctx, c.db, `
		SELECT * FROM document WHERE doc_id = $doc_id ORDER BY created_at DESC LIMIT 1
	`, map[string]any{"doc_id": id})
	if err != nil {
		return nil, fmt.Errorf("get document: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	doc := rows[0].toModel()
	return &doc, nil
}

// ListDocumentVersions returns every version of a document, oldest first.
func (c *Client) ListDocumentVersions(ctx context.Context, id string) ([]models.Document, error) {
	defer c.timed(metrics.OpDBRead)()

	results, err := surrealdb.Query[[]documentRow](ctx, c.db, `
		SELECT * FROM document WHERE doc_id = $doc_id ORDER BY created_at ASC
	`, map[string]any{"doc_id": id})
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	docs := make([]models.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toModel())
	}
	return docs, nil
}

// DeleteDocumentsAfter removes the versions of a document created strictly
// after the given time, along with suggestions attached to those versions.
func (c *Client) DeleteDocumentsAfter(ctx context.Context, id string, after time.Time) error {
	defer c.timed(metrics.OpDBWrite)()

	_, err := surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		DELETE suggestion WHERE document_id = $doc_id AND document_created_at > $after;
		DELETE document WHERE doc_id = $doc_id AND created_at > $after;
		COMMIT TRANSACTION;
	`, map[string]any{
		"doc_id": id,
		"after":  after.UTC(),
	})
	if err != nil {
		return fmt.Errorf("delete documents after: %w", wrapQueryError(err))
	}
	return nil
}

// SaveSuggestions inserts a batch of suggestions.
func (c *Client) SaveSuggestions(ctx context.Context, suggestions []models.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	defer c.timed(metrics.OpDBWrite)()

	now := time.Now().UTC()
	rows := make([]map[string]any, 0, len(suggestions))
	for _, s := range suggestions {
		id := s.ID
		if id == "" {
			id = uuid.NewString()
		}
		row := map[string]any{
			"id":                  surrealmodels.NewRecordID("suggestion", id),
			"document_id":         s.DocumentID,
			"document_created_at": s.DocumentCreatedAt.UTC(),
			"original_text":       s.OriginalText,
			"suggested_text":      s.SuggestedText,
			"is_resolved":         s.IsResolved,
			"user_id":             s.UserID,
			"created_at":          now,
		}
		if s.Description != "" {
			row["description"] = s.Description
		}
		rows = append(rows, row)
	}

	if _, err := surrealdb.Query[any](ctx, c.db, `INSERT INTO suggestion $rows`, map[string]any{"rows": rows}); err != nil {
		return fmt.Errorf("save suggestions: %w", wrapQueryError(err))
	}
	return nil
}

// ListSuggestions returns the suggestions attached to any version of a document.
func (c *Client) ListSuggestions(ctx context.Context, documentID string) ([]models.Suggestion, error) {
	defer c.timed(metrics.OpDBRead)()

	results, err := surrealdb.Query[[]suggestionRow](ctx, c.db, `
		SELECT * FROM suggestion WHERE document_id = $document_id ORDER BY created_at ASC
	`, map[string]any{"document_id": documentID})
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	out := make([]models.Suggestion, 0, len(rows))
	for _, r := range rows {
		s, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("list suggestions: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
