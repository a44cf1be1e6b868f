// Package chat orchestrates one chat request: resolving the model and the
// chat, running the multi-step tool loop and persisting the response.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/tools"
)

// Sentinel errors returned by Prepare.
var (
	// ErrNoUserMessage means the request history has no user message.
	ErrNoUserMessage = errors.New("no user message found")
	// ErrForbidden means the chat belongs to another user.
	ErrForbidden = errors.New("chat belongs to another user")
)

const (
	// DefaultMaxSteps bounds model turns per request.
	DefaultMaxSteps = 5
	// DefaultPersistTimeout bounds the final save after streaming.
	DefaultPersistTimeout = 10 * time.Second

	fallbackTitle = "New chat"
)

// Request is the body of a chat request.
type Request struct {
	ID       string             `json:"id,omitempty"`
	Messages []models.UIMessage `json:"messages"`
	ModelID  string             `json:"modelId"`
}

// Config tunes the orchestrator.
type Config struct {
	MaxSteps       int
	Tools          tools.ToolSet
	SystemPrompt   string
	PersistTimeout time.Duration
}

// Dependencies holds the services a chat request needs.
type Dependencies struct {
	Store    store.Store
	Catalog  *llm.Catalog
	Models   llm.Source
	Registry *tools.Registry
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

// Service prepares chat sessions.
type Service struct {
	deps Dependencies
	cfg  Config
}

// NewService creates a chat service. Zero config fields take defaults.
func NewService(deps Dependencies, cfg Config) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.AllTools
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	return &Service{deps: deps, cfg: cfg}
}

// Prepare validates a request, resolves or creates its chat and saves the
// most recent user message. Nothing is persisted when it returns
// llm.ErrModelNotFound, ErrNoUserMessage or ErrForbidden.
func (s *Service) Prepare(ctx context.Context, userID string, req Request) (*Session, error) {
	info, err := s.deps.Catalog.Lookup(req.ModelID)
	if err != nil {
		return nil, err
	}

	conversation := models.ToCoreMessages(req.Messages)
	userMsg := models.MostRecentUserMessage(conversation)
	if userMsg == nil {
		return nil, ErrNoUserMessage
	}

	model, err := s.deps.Models.Model(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", info.ID, err)
	}
	client := llm.NewClient(model, info.ID, s.deps.Metrics)

	chat, err := s.resolveChat(ctx, userID, req.ID, client, userMsg.Text())
	if err != nil {
		return nil, err
	}

	saved := *userMsg
	saved.ChatID = chat.ID
	if _, err := s.deps.Store.SaveMessages(ctx, []models.Message{saved}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	s.deps.Logger.Info("chat prepared", "chat_id", chat.ID, "model", info.ID, "messages", len(conversation))
	return &Session{
		ChatID:       chat.ID,
		userID:       userID,
		client:       client,
		conversation: conversation,
		svc:          s,
	}, nil
}

// resolveChat returns the requested chat or creates a new one when the id
// is empty or unknown.
func (s *Service) resolveChat(ctx context.Context, userID, chatID string, client *llm.Client, userText string) (*models.Chat, error) {
	if chatID != "" {
		chat, err := s.deps.Store.GetChat(ctx, chatID)
		switch {
		case err == nil:
			if chat.UserID != userID {
				return nil, ErrForbidden
			}
			return chat, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("get chat: %w", err)
		}
	}

	title, err := client.GenerateTitle(ctx, userText)
	if err != nil {
		s.deps.Logger.Warn("title generation failed, using message text", "error", err)
		title = llm.CleanTitle(userText)
		if title == "" {
			title = fallbackTitle
		}
	}

	chat, err := s.deps.Store.CreateChat(ctx, userID, title)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}
