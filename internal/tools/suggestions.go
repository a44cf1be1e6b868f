package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

const suggestionsPrompt = "You are a helpful writing assistant. Given a piece of writing, offer suggestions to improve it and describe each change. Every suggestion must contain full sentences, not single words. Max 5 suggestions."

// maxSuggestions bounds one requestSuggestions call.
const maxSuggestions = 5

var suggestionSchema = llm.ObjectSchema{
	Fields: []llm.Field{
		{Name: "originalSentence", Description: "The original sentence"},
		{Name: "suggestedSentence", Description: "The suggested sentence"},
		{Name: "description", Description: "The description of the suggestion"},
	},
	MaxItems: maxSuggestions,
}

// SuggestionsResult is returned by requestSuggestions.
type SuggestionsResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// RequestSuggestionsInput defines the arguments of the requestSuggestions tool.
type RequestSuggestionsInput struct {
	DocumentID string `json:"documentId"`
}

// Validate implements Validator.
func (in *RequestSuggestionsInput) Validate() error {
	if in.DocumentID == "" {
		return errors.New("documentId is required")
	}
	return nil
}

// NewRequestSuggestions creates the requestSuggestions tool. Suggestions are
// pushed to the editor one by one and saved together once generation ends,
// stamped with the creation time of the version they apply to.
func NewRequestSuggestions(deps *Dependencies) Tool {
	params := objectSchema(map[string]any{
		"documentId": prop("string", "The ID of the document to request edits"),
	}, "documentId")

	return newTool(NameRequestSuggestions, "Request suggestions for a document", params,
		func(ctx context.Context, env Env, in RequestSuggestionsInput) (any, error) {
			doc, err := loadOwnedDocument(ctx, deps.Store, in.DocumentID, env.UserID)
			if errors.Is(err, store.ErrNotFound) || (err == nil && strings.TrimSpace(doc.Content) == "") {
				return ErrorResult(msgDocumentNotFound, ""), nil
			}
			if err != nil {
				return nil, err
			}

			var suggestions []models.Suggestion
			_, err = env.Model.StreamObjects(ctx, suggestionsPrompt, doc.Content, suggestionSchema,
				func(item map[string]string) error {
					s := models.Suggestion{
						ID:                uuid.NewString(),
						DocumentID:        doc.ID,
						DocumentCreatedAt: doc.CreatedAt,
						OriginalText:      item["originalSentence"],
						SuggestedText:     item["suggestedSentence"],
						Description:       item["description"],
						UserID:            env.UserID,
					}
					if err := env.Data.Append(ctx, stream.Event{Type: stream.EventSuggestion, Content: s}); err != nil {
						return err
					}
					suggestions = append(suggestions, s)
					return nil
				})
			if err != nil {
				return nil, fmt.Errorf("generate suggestions: %w", err)
			}

			if err := deps.Store.SaveSuggestions(ctx, suggestions); err != nil {
				return nil, fmt.Errorf("save suggestions: %w", err)
			}

			deps.Logger.Info("suggestions added", "document", doc.ID, "count", len(suggestions))
			return SuggestionsResult{
				ID:      doc.ID,
				Title:   doc.Title,
				Message: "Suggestions have been added to the document",
			}, nil
		})
}
