// Package engine owns the relay's event protocol: it validates inbound
// events, persists confirmed state before any broadcast, and fans the
// result out to the right group of connections.
package engine

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/support-relay/internal/model/chat"
	"github.com/zhouzirui/support-relay/internal/service/ai"
	chatservice "github.com/zhouzirui/support-relay/internal/service/chat"
	"github.com/zhouzirui/support-relay/internal/service/hub"
)

const maxMessageRunes = 4000

// Config tunes the engine's automated-reply behavior.
type Config struct {
	// ReplyTimeout bounds a single reply generation. Zero keeps the
	// default of 30 seconds.
	ReplyTimeout time.Duration
	// ReplyName is the synthetic identity automated replies are
	// attributed to.
	ReplyName string
}

// Engine orchestrates sessions, broadcasts and the automated reply step.
// A nil responder disables auto-reply entirely.
type Engine struct {
	store     chatservice.Store
	hub       *hub.Hub
	responder ai.Responder

	replyTimeout time.Duration
	replyName    string

	mu      sync.Mutex
	pending map[replyKey]context.CancelFunc
	wg      sync.WaitGroup
}

// New wires the engine to its collaborators.
func New(store chatservice.Store, h *hub.Hub, responder ai.Responder, cfg Config) *Engine {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}
	if cfg.ReplyName == "" {
		cfg.ReplyName = "Support Assistant"
	}
	return &Engine{
		store:        store,
		hub:          h,
		responder:    responder,
		replyTimeout: cfg.ReplyTimeout,
		replyName:    cfg.ReplyName,
		pending:      make(map[replyKey]context.CancelFunc),
	}
}

// Connect assigns or resumes a session for the connection: the record is
// upserted as active, the connection joins the session group, and the
// assigned id is echoed back. Returns the assigned id for logging.
func (e *Engine) Connect(ctx context.Context, conn hub.Sink, p chat.ConnectPayload) string {
	sessionID := strings.TrimSpace(p.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if _, err := e.store.UpsertSession(ctx, sessionID, p.UserIP, p.UserAgent, chat.StatusActive); err != nil {
		log.Printf("[engine] upsert session %s failed: %v", sessionID, err)
		e.sendError(conn, "failed to open session")
		return ""
	}

	// A connection represents at most one session. Reconnecting under a
	// different id leaves the previous group the same way a disconnect
	// would, including the empty-group status transition.
	for _, group := range e.hub.Groups(conn) {
		prevID, ok := hub.SessionID(group)
		if !ok || prevID == sessionID {
			continue
		}
		if e.hub.Leave(conn, group) == 0 {
			if _, err := e.store.SetSessionStatus(ctx, prevID, chat.StatusInactive); err != nil {
				log.Printf("[engine] mark session %s inactive failed: %v", prevID, err)
			}
		}
	}

	e.hub.Join(conn, hub.SessionGroup(sessionID))
	e.hub.SendTo(conn, "user:connected", map[string]string{"sessionId": sessionID})
	return sessionID
}

// AdminJoin registers the connection into the shared admin group.
func (e *Engine) AdminJoin(conn hub.Sink) {
	e.hub.Join(conn, hub.AdminGroup)
}

// UserMessage persists a visitor message, notifies the admin group, echoes
// an acknowledgement to the sender and kicks off the automated reply step.
func (e *Engine) UserMessage(ctx context.Context, conn hub.Sink, p chat.InboundMessage) {
	saved, ok := e.persistInbound(ctx, conn, p, chat.SenderUser)
	if !ok {
		return
	}

	wire := saved.Wire()
	e.hub.Send(hub.AdminGroup, "message:new", wire)
	e.hub.SendTo(conn, "message:sent", wire)

	e.spawnAutoReply(saved)
}

// AdminMessage persists a staff message and relays it to the session group.
func (e *Engine) AdminMessage(ctx context.Context, conn hub.Sink, p chat.InboundMessage) {
	saved, ok := e.persistInbound(ctx, conn, p, chat.SenderAdmin)
	if !ok {
		return
	}

	wire := saved.Wire()
	e.hub.Send(hub.SessionGroup(saved.SessionID), "message:received", wire)
	e.hub.SendTo(conn, "message:sent", wire)
}

func (e *Engine) persistInbound(ctx context.Context, conn hub.Sink, p chat.InboundMessage, senderType chat.SenderType) (chat.Message, bool) {
	sessionID := strings.TrimSpace(p.SessionID)
	if sessionID == "" {
		e.sendError(conn, "sessionId is required")
		return chat.Message{}, false
	}

	body := strings.TrimSpace(p.Message)
	if body == "" {
		e.sendError(conn, "message must not be empty")
		return chat.Message{}, false
	}
	if len([]rune(body)) > maxMessageRunes {
		e.sendError(conn, "message is too long")
		return chat.Message{}, false
	}

	if (p.AttachmentURL == nil) != (p.AttachmentType == nil) {
		e.sendError(conn, "attachmentUrl and attachmentType must be provided together")
		return chat.Message{}, false
	}

	saved, err := e.store.CreateMessage(ctx, chat.Message{
		SessionID:      sessionID,
		Sender:         p.Sender,
		SenderType:     senderType,
		Content:        body,
		AttachmentURL:  p.AttachmentURL,
		AttachmentType: p.AttachmentType,
	})
	if err != nil {
		log.Printf("[engine] save %s message for session=%s failed: %v", senderType, sessionID, err)
		e.sendError(conn, "failed to save message")
		return chat.Message{}, false
	}
	return saved, true
}

// TypingStart forwards a composing signal. User signals reach the admin
// group tagged with the session id; admin signals reach the session group.
func (e *Engine) TypingStart(conn hub.Sink, p chat.TypingPayload) {
	e.typing(conn, p, false)
}

// TypingStop forwards the end of a composing signal. A stop lost to an
// abrupt disconnect is not synthesized here; the indicator stays until the
// next authoritative event.
func (e *Engine) TypingStop(conn hub.Sink, p chat.TypingPayload) {
	e.typing(conn, p, true)
}

func (e *Engine) typing(conn hub.Sink, p chat.TypingPayload, stop bool) {
	sessionID := strings.TrimSpace(p.SessionID)
	if sessionID == "" {
		e.sendError(conn, "sessionId is required")
		return
	}

	switch chat.SenderType(p.SenderType) {
	case chat.SenderUser:
		event := "typing:user"
		if stop {
			event = "typing:user:stop"
		}
		e.hub.Send(hub.AdminGroup, event, map[string]string{"sessionId": sessionID})
	case chat.SenderAdmin:
		event := "typing:admin"
		if stop {
			event = "typing:admin:stop"
		}
		e.hub.Send(hub.SessionGroup(sessionID), event, nil)
	default:
		e.sendError(conn, "senderType must be user or admin")
	}
}

// CloseSession marks the session inactive without touching membership.
func (e *Engine) CloseSession(ctx context.Context, conn hub.Sink, p chat.ClosePayload) {
	sessionID := strings.TrimSpace(p.SessionID)
	if sessionID == "" {
		e.sendError(conn, "sessionId is required")
		return
	}

	if _, err := e.store.SetSessionStatus(ctx, sessionID, chat.StatusInactive); err != nil {
		log.Printf("[engine] close session %s failed: %v", sessionID, err)
		e.sendError(conn, "failed to close session")
	}
}

// Disconnect removes the connection from every group it joined. When it was
// the last member of a session group, the session is marked inactive; the
// hub's atomic leave-and-count guarantees that happens exactly once even
// when sibling connections drop simultaneously.
func (e *Engine) Disconnect(ctx context.Context, conn hub.Sink) {
	for _, group := range e.hub.Groups(conn) {
		remaining := e.hub.Leave(conn, group)

		sessionID, ok := hub.SessionID(group)
		if !ok || remaining > 0 {
			continue
		}

		if _, err := e.store.SetSessionStatus(ctx, sessionID, chat.StatusInactive); err != nil {
			log.Printf("[engine] mark session %s inactive failed: %v", sessionID, err)
		}
	}
}

// Wait blocks until every in-flight automated reply has settled. Called on
// shutdown and by tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) sendError(conn hub.Sink, message string) {
	e.hub.SendTo(conn, "error", map[string]string{"message": message})
}
