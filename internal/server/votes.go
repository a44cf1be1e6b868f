package server

import (
	"net/http"

	"github.com/raphaelgruber/chatblocks/internal/models"
)

// Vote types accepted by PATCH /api/vote.
const (
	voteUp   = "up"
	voteDown = "down"
)

type voteRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "chatId is required")
		return
	}
	if _, ok := s.ownedChat(w, r, chatID); !ok {
		return
	}

	votes, err := s.deps.Store.ListVotes(r.Context(), chatID)
	if err != nil {
		s.internalError(w, "list votes", err)
		return
	}
	if votes == nil {
		votes = []models.Vote{}
	}
	writeJSON(w, http.StatusOK, votes)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ChatID == "" || req.MessageID == "" || (req.Type != voteUp && req.Type != voteDown) {
		writeError(w, http.StatusBadRequest, "messageId, chatId and type are required")
		return
	}
	if _, ok := s.ownedChat(w, r, req.ChatID); !ok {
		return
	}

	if err := s.deps.Store.VoteMessage(r.Context(), req.ChatID, req.MessageID, req.Type == voteUp); err != nil {
		s.internalError(w, "vote message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message voted"})
}
