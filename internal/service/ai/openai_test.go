package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/support-relay/internal/config"
)

func newTestResponder(t *testing.T, handler http.HandlerFunc) *openaiResponder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return newOpenAIResponder(config.AIConfig{
		Provider:      config.ProviderOpenAI,
		OpenAIAPIKey:  "test-key",
		OpenAIModel:   "test-model",
		OpenAIBaseURL: server.URL,
	})
}

func TestOpenAIGenerateReply(t *testing.T) {
	responder := newTestResponder(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(completionResponse{
			Choices: []struct {
				Message completionMessage `json:"message"`
			}{
				{Message: completionMessage{Role: "assistant", Content: "  Happy to help!  "}},
			},
		})
	})

	text, err := responder.GenerateReply(context.Background(), "sess-1", "Where is my order?")
	if err != nil {
		t.Fatalf("GenerateReply err: %v", err)
	}
	if text != "Happy to help!" {
		t.Fatalf("expected trimmed reply, got %q", text)
	}
}

func TestOpenAIErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			responder := newTestResponder(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := responder.GenerateReply(context.Background(), "sess-1", "hello")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOpenAIEmptyResult(t *testing.T) {
	responder := newTestResponder(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse{})
	})

	_, err := responder.GenerateReply(context.Background(), "sess-1", "hello")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestNewResponderDisabledWithoutCredentials(t *testing.T) {
	responder, err := NewResponder(context.Background(), config.AIConfig{})
	if err != nil {
		t.Fatalf("NewResponder err: %v", err)
	}
	if responder != nil {
		t.Fatal("expected nil responder when no credentials are configured")
	}
}
