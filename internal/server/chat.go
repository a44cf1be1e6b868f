package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

// chatResponse is returned by GET /api/chat.
type chatResponse struct {
	Chat     models.Chat        `json:"chat"`
	Messages []models.UIMessage `json:"messages"`
}

// prepareStatus maps a Prepare failure to a status code and client message.
func prepareStatus(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrModelNotFound):
		return http.StatusNotFound, "Model not found"
	case errors.Is(err, chat.ErrNoUserMessage):
		return http.StatusBadRequest, "No user message found"
	case errors.Is(err, chat.ErrForbidden):
		return http.StatusUnauthorized, "Unauthorized"
	default:
		return http.StatusInternalServerError, "An error occurred while processing your request"
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ChatMaxDuration)
	defer cancel()

	sess, err := s.deps.Chat.Prepare(ctx, userID(r), req)
	if err != nil {
		status, msg := prepareStatus(err)
		if status == http.StatusInternalServerError {
			s.deps.Logger.Error("prepare chat failed", "error", err)
		}
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(stream.HeaderChatID, sess.ChatID)
	w.Header().Set(stream.HeaderStreamFormat, stream.StreamFormatV1)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.pump(ctx, cancel, sess, func(part stream.Part) error {
		if _, err := w.Write(part.Line()); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
}

// pump runs the session and hands every part to send, in order. When send
// fails the request context is cancelled and the remaining parts are drained
// so the producer can finish and persist.
func (s *Server) pump(ctx context.Context, cancel context.CancelFunc, sess *chat.Session, send func(stream.Part) error) {
	pipe := stream.NewPipe(stream.DefaultPipeSize)
	go func() {
		defer pipe.Close()
		_ = sess.Stream(ctx, stream.NewWriter(pipe), stream.NewData(pipe))
	}()

	broken := false
	for part := range pipe.Parts() {
		if broken {
			continue
		}
		if err := send(part); err != nil {
			s.deps.Logger.Debug("client went away", "chat_id", sess.ChatID, "error", err)
			broken = true
			cancel()
		}
	}
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id")
		return
	}

	c, ok := s.ownedChat(w, r, id)
	if !ok {
		return
	}
	msgs, err := s.deps.Store.ListMessages(r.Context(), id)
	if err != nil {
		s.internalError(w, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Chat: *c, Messages: models.ToUIMessages(msgs)})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	if _, ok := s.ownedChat(w, r, id); !ok {
		return
	}
	if err := s.deps.Store.DeleteChat(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		s.internalError(w, "delete chat", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	chats, err := s.deps.Store.ListChats(r.Context(), userID(r))
	if err != nil {
		s.internalError(w, "list chats", err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

// ownedChat loads a chat and checks that the caller owns it, writing the
// error response when it returns false.
func (s *Server) ownedChat(w http.ResponseWriter, r *http.Request, id string) (*models.Chat, bool) {
	c, err := s.deps.Store.GetChat(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not Found")
		return nil, false
	case err != nil:
		s.internalError(w, "get chat", err)
		return nil, false
	case c.UserID != userID(r):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return c, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.deps.Logger.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "An error occurred while processing your request")
}
