package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/chatblocks/internal/models"
)

// Memory is an in-process Store. All methods are safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	now         func() time.Time
	chats       map[string]models.Chat
	messages    []models.Message
	votes       []models.Vote
	documents   []models.Document
	suggestions []models.Suggestion
}

// Compile-time check that Memory implements Store.
var _ Store = (*Memory)(nil)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:   func() time.Time { return time.Now().UTC() },
		chats: make(map[string]models.Chat),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Ping(ctx context.Context) error  { return nil }
func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat := models.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: m.now(),
	}
	m.chats[chat.ID] = chat
	return &chat, nil
}

func (m *Memory) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return &chat, nil
}

func (m *Memory) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Chat{}
	for _, c := range m.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteChat(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[id]; !ok {
		return fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	m.votes = slices.DeleteFunc(m.votes, func(v models.Vote) bool { return v.ChatID == id })
	m.messages = slices.DeleteFunc(m.messages, func(msg models.Message) bool { return msg.ChatID == id })
	delete(m.chats, id)
	return nil
}

func (m *Memory) SaveMessages(ctx context.Context, msgs []models.Message) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		if _, ok := m.chats[msg.ChatID]; !ok {
			return nil, fmt.Errorf("chat %s: %w", msg.ChatID, ErrNotFound)
		}
	}

	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		msg.CreatedAt = m.now()
		m.messages = append(m.messages, msg)
		ids = append(ids, msg.ID)
	}
	return ids, nil
}

func (m *Memory) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Message{}
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *Memory) VoteMessage(ctx context.Context, chatID, messageID string, upvoted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.votes {
		if m.votes[i].ChatID == chatID && m.votes[i].MessageID == messageID {
			m.votes[i].IsUpvoted = upvoted
			return nil
		}
	}
	m.votes = append(m.votes, models.Vote{ChatID: chatID, MessageID: messageID, IsUpvoted: upvoted})
	return nil
}

func (m *Memory) ListVotes(ctx context.Context, chatID string) ([]models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Vote{}
	for _, v := range m.votes {
		if v.ChatID == chatID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) SaveDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc.CreatedAt = m.now()
	m.documents = append(m.documents, doc)
	return &doc, nil
}

func (m *Memory) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.Document
	for i := range m.documents {
		d := m.documents[i]
		if d.ID != id {
			continue
		}
		if latest == nil || !d.CreatedAt.Before(latest.CreatedAt) {
			latest = &d
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return latest, nil
}

func (m *Memory) ListDocumentVersions(ctx context.Context, id string) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Document{}
	for _, d := range m.documents {
		if d.ID == id {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteDocumentsAfter(ctx context.Context, id string, after time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.suggestions = slices.DeleteFunc(m.suggestions, func(s models.Suggestion) bool {
		return s.DocumentID == id && s.DocumentCreatedAt.After(after)
	})
	m.documents = slices.DeleteFunc(m.documents, func(d models.Document) bool {
		return d.ID == id && d.CreatedAt.After(after)
	})
	return nil
}

func (m *Memory) SaveSuggestions(ctx context.Context, suggestions []models.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range suggestions {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.CreatedAt = m.now()
		m.suggestions = append(m.suggestions, s)
	}
	return nil
}

func (m *Memory) ListSuggestions(ctx context.Context, documentID string) ([]models.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Suggestion{}
	for _, s := range m.suggestions {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	return out, nil
}
