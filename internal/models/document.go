package models

import "time"

// Document is one version of a user-owned text artifact. Versions share ID
// and are ordered by CreatedAt.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Suggestion is a proposed edit attached to a specific document version,
// identified by DocumentID plus DocumentCreatedAt.
type Suggestion struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"documentId"`
	DocumentCreatedAt time.Time `json:"documentCreatedAt"`
	OriginalText      string    `json:"originalText"`
	SuggestedText     string    `json:"suggestedText"`
	Description       string    `json:"description,omitempty"`
	IsResolved        bool      `json:"isResolved"`
	UserID            string    `json:"userId"`
	CreatedAt         time.Time `json:"createdAt"`
}
