// Package ai produces automated admin replies for user messages. Two
// backends implement the same capability; configuration picks one.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/support-relay/internal/config"
)

// Typed generation failures. Callers log them to tell an exhausted quota
// apart from a bad credential or a transport problem; none of them reach
// the end user.
var (
	ErrRateLimited  = errors.New("reply generator rate limited")
	ErrUnauthorized = errors.New("reply generator unauthorized")
	ErrUnavailable  = errors.New("reply generator unavailable")
	ErrEmptyResult  = errors.New("reply generator returned no text")
)

// systemPrompt is the fixed instruction sent with every generation request.
const systemPrompt = "You are a customer support assistant. " +
	"Reply to the visitor's message concisely and professionally. " +
	"If you cannot help, ask the visitor to wait for a human agent."

// Responder generates at most one assistant reply for a user message.
type Responder interface {
	GenerateReply(ctx context.Context, sessionID, userText string) (string, error)
}

// NewResponder builds the configured backend. A nil responder with a nil
// error means no credentials are configured and auto-reply stays off.
func NewResponder(ctx context.Context, cfg config.AIConfig) (Responder, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return newArkResponder(ctx, cfg)
	case config.ProviderOpenAI:
		return newOpenAIResponder(cfg), nil
	}
	return nil, fmt.Errorf("unknown reply provider: %q", cfg.Provider)
}
