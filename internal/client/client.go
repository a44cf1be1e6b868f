// Package client provides an HTTP and WebSocket client for the chatblocks
// server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 30 * time.Second

// Client talks to the chatblocks REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// streamClient has no overall timeout; chat streams are bounded by the
	// server and by the caller's context.
	streamClient *http.Client
}

// New creates a client for baseURL. token is sent as a bearer token when set.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		streamClient: &http.Client{},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.Status, e.Message)
}

// ChatDetail is a chat and its messages in UI form.
type ChatDetail struct {
	Chat     models.Chat        `json:"chat"`
	Messages []models.UIMessage `json:"messages"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends a JSON request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// =============================================================================
// CHATS
// =============================================================================

// History lists the caller's chats, newest first.
func (c *Client) History(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChat returns a chat with its messages.
func (c *Client) GetChat(ctx context.Context, id string) (*ChatDetail, error) {
	var detail ChatDetail
	if err := c.do(ctx, http.MethodGet, "/api/chat?id="+url.QueryEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteChat deletes a chat and everything attached to it.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chat?id="+url.QueryEscape(id), nil, nil)
}

// Vote records an up or down vote on a message.
func (c *Client) Vote(ctx context.Context, chatID, messageID string, up bool) error {
	kind := "down"
	if up {
		kind = "up"
	}
	body := map[string]string{"chatId": chatID, "messageId": messageID, "type": kind}
	return c.do(ctx, http.MethodPatch, "/api/vote", body, nil)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// DocumentVersions lists every saved version of a document, oldest first.
func (c *Client) DocumentVersions(ctx context.Context, id string) ([]models.Document, error) {
	var docs []models.Document
	if err := c.do(ctx, http.MethodGet, "/api/document?id="+url.QueryEscape(id), nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Suggestions lists the suggestions attached to a document.
func (c *Client) Suggestions(ctx context.Context, documentID string) ([]models.Suggestion, error) {
	var out []models.Suggestion
	if err := c.do(ctx, http.MethodGet, "/api/suggestions?documentId="+url.QueryEscape(documentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// SERVER
// =============================================================================

// Models lists the selectable chat models.
func (c *Client) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	var out []llm.ModelInfo
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns in-memory runtime statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// =============================================================================
// STREAMING OPERATIONS
// =============================================================================

// Chat posts a chat request and calls onPart for every protocol part the
// server streams back. It returns the chat id from the response headers.
// Return an error from onPart to abort.
func (c *Client) Chat(ctx context.Context, req chat.Request, onPart func(stream.Part) error) (string, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		return "", err
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	chatID := resp.Header.Get(stream.HeaderChatID)
	if err := stream.Decode(resp.Body, onPart); err != nil {
		if ctx.Err() != nil {
			return chatID, ctx.Err()
		}
		return chatID, fmt.Errorf("read stream: %w", err)
	}
	return chatID, nil
}

// wsHello is the first server message on a chat WebSocket.
type wsHello struct {
	ChatID string `json:"chatId"`
}

// ChatWS runs a chat request over the WebSocket endpoint. Parts are handed
// to onPart exactly as with Chat.
func (c *Client) ChatWS(ctx context.Context, req chat.Request, onPart func(stream.Part) error) (string, error) {
	wsEndpoint := c.baseURL + "/api/chat/ws"
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if statusErr := checkStatus(resp); statusErr != nil {
				return "", statusErr
			}
		}
		return "", fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	var hello wsHello
	if err := conn.ReadJSON(&hello); err != nil {
		return "", wsError(ctx, err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return hello.ChatID, nil
			}
			return hello.ChatID, wsError(ctx, err)
		}
		if err := stream.Decode(bytes.NewReader(msg), onPart); err != nil {
			return hello.ChatID, err
		}
	}
}

// wsError converts a WebSocket failure to an error, mapping the server's
// 4000+status close codes back to an APIError.
func wsError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code >= 4000 && ce.Code < 5000 {
		return &APIError{Status: ce.Code - 4000, Message: ce.Text}
	}
	return fmt.Errorf("read message: %w", err)
}
