package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/zhouzirui/support-relay/internal/model/chat"
)

// MemoryStore implements Store with in-memory maps, suitable for running
// without a database and for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

// NewMemoryStore bootstraps an empty in-memory gateway.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// UpsertSession creates or refreshes a session record.
func (s *MemoryStore) UpsertSession(_ context.Context, id, userIP, userAgent string, status chat.Status) (chat.Session, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		session = chat.Session{
			ID:        id,
			AutoReply: true,
			CreatedAt: now,
		}
		s.messages[id] = make([]chat.Message, 0, 16)
	}

	if userIP != "" {
		session.UserIP = userIP
	}
	if userAgent != "" {
		session.UserAgent = userAgent
	}
	session.Status = status
	session.LastActiveAt = now

	s.sessions[id] = session
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *MemoryStore) GetSession(_ context.Context, id string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// SetSessionStatus transitions the session lifecycle state.
func (s *MemoryStore) SetSessionStatus(_ context.Context, id string, status chat.Status) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}

	session.Status = status
	s.sessions[id] = session
	return session, nil
}

// SetAutoReply toggles the automated-reply flag.
func (s *MemoryStore) SetAutoReply(_ context.Context, id string, enabled bool) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}

	session.AutoReply = enabled
	s.sessions[id] = session
	return session, nil
}

// CreateMessage appends a message to the session transcript.
func (s *MemoryStore) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[msg.SessionID]
	if !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)

	session.LastActiveAt = msg.CreatedAt
	s.sessions[msg.SessionID] = session

	return msg, nil
}

// ListSessions returns filtered sessions, most recently active first.
func (s *MemoryStore) ListSessions(_ context.Context, filter chat.Filter) ([]chat.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matching := lo.Filter(lo.Values(s.sessions), func(session chat.Session, _ int) bool {
		return filter.Matches(session.Status)
	})

	summaries := lo.Map(matching, func(session chat.Session, _ int) chat.SessionSummary {
		summary := chat.SessionSummary{Session: session}
		if transcript := s.messages[session.ID]; len(transcript) > 0 {
			summary.MessageCount = len(transcript)
			last := transcript[len(transcript)-1]
			summary.LastMessage = &last
		}
		return summary
	})

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActiveAt.After(summaries[j].LastActiveAt)
	})
	return summaries, nil
}

// ListMessages returns the transcript in ascending creation order.
func (s *MemoryStore) ListMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(transcript))
	copy(copied, transcript)
	return copied, nil
}
