package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/support-relay/internal/config"
)

// arkResponder runs a compiled eino prompt+model chain against the Ark API.
type arkResponder struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

func newArkResponder(ctx context.Context, cfg config.AIConfig) (*arkResponder, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	return &arkResponder{chain: runnable}, nil
}

// GenerateReply invokes the chain with the fixed support instruction.
func (r *arkResponder) GenerateReply(ctx context.Context, sessionID, userText string) (string, error) {
	response, err := r.chain.Invoke(ctx, map[string]any{
		"system": systemPrompt,
		"query":  userText,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", ErrEmptyResult
	}

	log.Printf("[ai] generated reply for session=%s length=%d", sessionID, len(text))
	return text, nil
}
