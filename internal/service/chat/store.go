package chat

import (
	"context"
	"errors"

	"github.com/zhouzirui/support-relay/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message content is empty")
)

// Store is the persistence gateway for sessions and their transcripts. The
// relay keeps connection membership in memory only; everything that must
// survive a reconnect goes through this interface.
type Store interface {
	// UpsertSession creates the session if the id is unknown, otherwise
	// refreshes its origin metadata and status. A given id never yields
	// two records.
	UpsertSession(ctx context.Context, id, userIP, userAgent string, status chat.Status) (chat.Session, error)

	// GetSession returns ErrSessionNotFound for unknown ids.
	GetSession(ctx context.Context, id string) (chat.Session, error)

	// SetSessionStatus transitions the session lifecycle state.
	SetSessionStatus(ctx context.Context, id string, status chat.Status) (chat.Session, error)

	// SetAutoReply toggles the automated-reply flag.
	SetAutoReply(ctx context.Context, id string, enabled bool) (chat.Session, error)

	// CreateMessage appends a message to its session's transcript, assigns
	// id and timestamp, and touches the session's last-activity time.
	CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error)

	// ListSessions returns sessions matching the filter, most recently
	// active first, each with message count and last-message snapshot.
	ListSessions(ctx context.Context, filter chat.Filter) ([]chat.SessionSummary, error)

	// ListMessages returns the transcript in ascending creation order.
	ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
}
