package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chatblocks/internal/llm/llmtest"
	"github.com/raphaelgruber/chatblocks/internal/models"
)

func TestCreateDocument(t *testing.T) {
	h := newHarness(t, nil, llmtest.Text("# Spring\n", "Blossoms."))

	out := h.exec(NameCreateDocument, `{"title":"Spring"}`)
	require.NotContains(t, out, "error")
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Spring", out["title"])
	assert.Equal(t, "A document was created and is now visible to the user.", out["content"])

	evs := h.events(t)
	assert.Equal(t, []string{"id", "title", "clear", "text-delta", "text-delta", "finish"}, eventTypes(evs))
	assert.JSONEq(t, `"`+id+`"`, string(evs[0].Content))
	assert.JSONEq(t, `"Spring"`, string(evs[1].Content))
	assert.JSONEq(t, `""`, string(evs[2].Content))

	doc, err := h.store.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "# Spring\nBlossoms.", doc.Content)
	assert.Equal(t, "user-1", doc.UserID)

	calls := h.model.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Options.Tools, "nested generation runs without tools")
}

func TestUpdateDocument(t *testing.T) {
	h := newHarness(t, nil, llmtest.Text("Shorter."))
	ctx := context.Background()

	orig, err := h.store.SaveDocument(ctx, models.Document{ID: "doc-1", Title: "Essay", Content: "Long text.", UserID: "user-1"})
	require.NoError(t, err)

	out := h.exec(NameUpdateDocument, `{"id":"doc-1","description":"make it shorter"}`)
	require.NotContains(t, out, "error")
	assert.Equal(t, "The document has been updated successfully.", out["content"])
	assert.Equal(t, "Essay", out["title"])

	evs := h.events(t)
	assert.Equal(t, []string{"clear", "text-delta", "finish"}, eventTypes(evs))
	assert.JSONEq(t, `"Essay"`, string(evs[0].Content))

	versions, err := h.store.ListDocumentVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, orig.Content, versions[0].Content)
	assert.Equal(t, "Shorter.", versions[1].Content)

	calls := h.model.Calls()
	require.Len(t, calls, 1)
	// system, description, current content
	require.Len(t, calls[0].Messages, 3)
}

func TestUpdateDocument_NotFound(t *testing.T) {
	tests := []struct {
		name  string
		owner string
	}{
		{name: "missing"},
		{name: "other user", owner: "user-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if tt.owner != "" {
				_, err := h.store.SaveDocument(context.Background(), models.Document{ID: "doc-1", Title: "T", Content: "c", UserID: tt.owner})
				require.NoError(t, err)
			}

			out := h.exec(NameUpdateDocument, `{"id":"doc-1","description":"x"}`)
			assert.Equal(t, "Document not found", out["error"])
			assert.Empty(t, h.events(t))
			assert.Empty(t, h.model.Calls())
		})
	}
}

func TestRequestSuggestions(t *testing.T) {
	h := newHarness(t, nil, llmtest.Text(
		`{"elements":[{"originalSentence":"teh cat","suggestedSentence":"the cat","description":"typo"},`,
		`{"originalSentence":"x"},`,
		`{"originalSentence":"a dog","suggestedSentence":"A dog","description":"capital"}]}`,
	))
	ctx := context.Background()

	doc, err := h.store.SaveDocument(ctx, models.Document{ID: "doc-1", Title: "Pets", Content: "teh cat. a dog.", UserID: "user-1"})
	require.NoError(t, err)

	out := h.exec(NameRequestSuggestions, `{"documentId":"doc-1"}`)
	require.NotContains(t, out, "error")
	assert.Equal(t, "Suggestions have been added to the document", out["message"])
	assert.Equal(t, "Pets", out["title"])

	evs := h.events(t)
	require.Equal(t, []string{"suggestion", "suggestion"}, eventTypes(evs))
	var first models.Suggestion
	require.NoError(t, json.Unmarshal(evs[0].Content, &first))
	assert.Equal(t, "the cat", first.SuggestedText)
	assert.NotEmpty(t, first.ID)

	saved, err := h.store.ListSuggestions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	for _, s := range saved {
		assert.True(t, s.DocumentCreatedAt.Equal(doc.CreatedAt), "suggestion stamped with version time")
		assert.Equal(t, "user-1", s.UserID)
		assert.False(t, s.IsResolved)
	}
}

func TestRequestSuggestions_EmptyDocument(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.store.SaveDocument(context.Background(), models.Document{ID: "doc-1", Title: "Blank", UserID: "user-1"})
	require.NoError(t, err)

	out := h.exec(NameRequestSuggestions, `{"documentId":"doc-1"}`)
	assert.Equal(t, "Document not found", out["error"])
	assert.Empty(t, h.model.Calls())
}
