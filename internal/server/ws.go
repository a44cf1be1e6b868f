package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = maxBodySize

	// Close codes for requests rejected before streaming: 4000 plus the
	// HTTP status the POST route would have returned.
	wsCloseBase = 4000
)

// WSHello is the first server message on a chat socket.
type WSHello struct {
	ChatID string `json:"chatId"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleChatWS runs the chat pipeline over a WebSocket. The client sends the
// chat request as its first message; the server answers with a WSHello and
// then one text message per protocol part.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	var req chat.Request
	if err := conn.ReadJSON(&req); err != nil {
		s.closeWS(conn, http.StatusBadRequest, "invalid request")
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
		s.closeWS(conn, status, msg)
		return
	}

	// The client sends nothing after the request; a read error means it left.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	hello, _ := json.Marshal(WSHello{ChatID: sess.ChatID})
	if err := s.writeWS(conn, hello); err != nil {
		cancel()
	}

	s.pump(ctx, cancel, sess, func(part stream.Part) error {
		line := part.Line()
		return s.writeWS(conn, line[:len(line)-1])
	})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
}

func (s *Server) writeWS(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *Server) closeWS(conn *websocket.Conn, status int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(wsCloseBase+status, reason), time.Now().Add(wsWriteWait))
}
