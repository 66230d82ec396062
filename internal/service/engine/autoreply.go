package engine

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/zhouzirui/support-relay/internal/model/chat"
	"github.com/zhouzirui/support-relay/internal/service/ai"
	"github.com/zhouzirui/support-relay/internal/service/hub"
)

// replyKey identifies one in-flight generation, so a future supersede or
// cancel policy can target it without protocol changes.
type replyKey struct {
	sessionID string
	messageID string
}

// spawnAutoReply launches the reply sub-protocol as a detached unit of
// work. It never blocks the caller; other sessions' events keep flowing
// while the generator runs.
func (e *Engine) spawnAutoReply(trigger chat.Message) {
	if e.responder == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.autoReply(trigger)
	}()
}

func (e *Engine) autoReply(trigger chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), e.replyTimeout)
	defer cancel()

	key := replyKey{sessionID: trigger.SessionID, messageID: trigger.ID}
	e.trackReply(key, cancel)
	defer e.untrackReply(key)

	session, err := e.store.GetSession(ctx, trigger.SessionID)
	if err != nil {
		log.Printf("[engine] auto-reply lookup for session=%s failed: %v", trigger.SessionID, err)
		return
	}
	if !session.AutoReply {
		return
	}

	group := hub.SessionGroup(trigger.SessionID)
	e.hub.Send(group, "typing:admin", nil)
	defer e.hub.Send(group, "typing:admin:stop", nil)

	text, err := e.responder.GenerateReply(ctx, trigger.SessionID, trigger.Content)
	if err != nil {
		logReplyFailure(trigger.SessionID, err)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	saved, err := e.store.CreateMessage(ctx, chat.Message{
		SessionID:  trigger.SessionID,
		Sender:     e.replyName,
		SenderType: chat.SenderAdmin,
		Content:    text,
		IsAI:       true,
	})
	if err != nil {
		log.Printf("[engine] save auto-reply for session=%s failed: %v", trigger.SessionID, err)
		return
	}

	wire := saved.Wire()
	e.hub.Send(group, "message:received", wire)
	e.hub.Send(hub.AdminGroup, "message:new", wire)
}

func (e *Engine) trackReply(key replyKey, cancel context.CancelFunc) {
	e.mu.Lock()
	e.pending[key] = cancel
	e.mu.Unlock()
}

func (e *Engine) untrackReply(key replyKey) {
	e.mu.Lock()
	delete(e.pending, key)
	e.mu.Unlock()
}

// logReplyFailure keeps quota, credential and transport failures apart in
// the logs; none of them surface to the visitor.
func logReplyFailure(sessionID string, err error) {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		log.Printf("[engine] auto-reply rate limited session=%s: %v", sessionID, err)
	case errors.Is(err, ai.ErrUnauthorized):
		log.Printf("[engine] auto-reply credentials rejected session=%s: %v", sessionID, err)
	case errors.Is(err, ai.ErrEmptyResult):
		log.Printf("[engine] auto-reply produced no text session=%s", sessionID)
	default:
		log.Printf("[engine] auto-reply failed session=%s: %v", sessionID, err)
	}
}
