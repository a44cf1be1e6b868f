package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/chatblocks/internal/models"
)

type saveDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type rewindDocumentRequest struct {
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id")
		return
	}

	versions, ok := s.ownedVersions(w, r, id)
	if !ok {
		return
	}
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// handleSaveDocument appends a version, as written by the block editor.
func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id")
		return
	}
	var req saveDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Missing title")
		return
	}

	if _, ok := s.ownedVersions(w, r, id); !ok {
		return
	}
	doc, err := s.deps.Store.SaveDocument(r.Context(), models.Document{
		ID:      id,
		Title:   req.Title,
		Content: req.Content,
		UserID:  userID(r),
	})
	if err != nil {
		s.internalError(w, "save document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleRewindDocument deletes every version, and its suggestions, created
// after the given timestamp.
func (s *Server) handleRewindDocument(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id")
		return
	}
	var req rewindDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "Missing timestamp")
		return
	}

	versions, ok := s.ownedVersions(w, r, id)
	if !ok {
		return
	}
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if err := s.deps.Store.DeleteDocumentsAfter(r.Context(), id, req.Timestamp); err != nil {
		s.internalError(w, "delete documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "Missing documentId")
		return
	}

	suggestions, err := s.deps.Store.ListSuggestions(r.Context(), documentID)
	if err != nil {
		s.internalError(w, "list suggestions", err)
		return
	}
	caller := userID(r)
	for _, sg := range suggestions {
		if sg.UserID != caller {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// ownedVersions lists a document's versions and rejects callers who do not
// own it. A document with no versions is returned as an empty list.
func (s *Server) ownedVersions(w http.ResponseWriter, r *http.Request, id string) ([]models.Document, bool) {
	versions, err := s.deps.Store.ListDocumentVersions(r.Context(), id)
	if err != nil {
		s.internalError(w, "list document versions", err)
		return nil, false
	}
	if len(versions) > 0 && versions[0].UserID != userID(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return versions, true
}
