package chat_test

import (
	"context"
	"testing"

	model "github.com/zhouzirui/support-relay/internal/model/chat"
	chat "github.com/zhouzirui/support-relay/internal/service/chat"
)

func TestUpsertSessionCreatesOnce(t *testing.T) {
	store := chat.NewMemoryStore()
	ctx := context.Background()

	first, err := store.UpsertSession(ctx, "sess-1", "203.0.113.9", "Mozilla/5.0", model.StatusActive)
	if err != nil {
		t.Fatalf("UpsertSession err: %v", err)
	}
	if !first.AutoReply {
		t.Fatal("new sessions should default to auto-reply enabled")
	}

	second, err := store.UpsertSession(ctx, "sess-1", "198.51.100.4", "", model.StatusActive)
	if err != nil {
		t.Fatalf("UpsertSession (repeat) err: %v", err)
	}
	if second.UserIP != "198.51.100.4" {
		t.Fatalf("expected metadata update, got ip %s", second.UserIP)
	}
	if second.UserAgent != "Mozilla/5.0" {
		t.Fatalf("blank agent should not clear stored value, got %q", second.UserAgent)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Fatal("repeat upsert must not reset creation time")
	}

	all, err := store.ListSessions(ctx, model.FilterAll)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single session record, got %d", len(all))
	}
}

func TestCreateMessageRoundTrip(t *testing.T) {
	store := chat.NewMemoryStore()
	ctx := context.Background()

	session, err := store.UpsertSession(ctx, "sess-1", "", "", model.StatusActive)
	if err != nil {
		t.Fatalf("UpsertSession err: %v", err)
	}

	url := "https://cdn.example.com/receipt.png"
	mediaType := "image/png"
	saved, err := store.CreateMessage(ctx, model.Message{
		SessionID:      "sess-1",
		Sender:         "Alice",
		SenderType:     model.SenderUser,
		Content:        "Hello",
		AttachmentURL:  &url,
		AttachmentType: &mediaType,
	})
	if err != nil {
		t.Fatalf("CreateMessage err: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected assigned message id")
	}
	if saved.CreatedAt.Before(session.LastActiveAt) {
		t.Fatal("message timestamp precedes prior session activity")
	}

	transcript, err := store.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages err: %v", err)
	}
	if len(transcript) != 1 {
		t.Fatalf("expected 1 message, got %d", len(transcript))
	}
	got := transcript[0]
	if got.Content != "Hello" || got.Sender != "Alice" || got.SenderType != model.SenderUser {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.AttachmentURL == nil || *got.AttachmentURL != url {
		t.Fatal("attachment url lost in round-trip")
	}
	if got.AttachmentType == nil || *got.AttachmentType != mediaType {
		t.Fatal("attachment type lost in round-trip")
	}

	refreshed, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if !refreshed.LastActiveAt.Equal(saved.CreatedAt) {
		t.Fatal("CreateMessage must touch the session's last-activity time")
	}
}

func TestCreateMessageUnknownSession(t *testing.T) {
	store := chat.NewMemoryStore()

	_, err := store.CreateMessage(context.Background(), model.Message{
		SessionID:  "missing",
		SenderType: model.SenderUser,
		Content:    "hi",
	})
	if err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreateMessageEmptyBody(t *testing.T) {
	store := chat.NewMemoryStore()
	ctx := context.Background()

	if _, err := store.UpsertSession(ctx, "sess-1", "", "", model.StatusActive); err != nil {
		t.Fatalf("UpsertSession err: %v", err)
	}

	_, err := store.CreateMessage(ctx, model.Message{
		SessionID:  "sess-1",
		SenderType: model.SenderUser,
		Content:    "   \t  ",
	})
	if err != chat.ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	transcript, err := store.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages err: %v", err)
	}
	if len(transcript) != 0 {
		t.Fatalf("whitespace body must not persist, got %d messages", len(transcript))
	}
}

func TestListSessionsFilters(t *testing.T) {
	store := chat.NewMemoryStore()
	ctx := context.Background()

	if _, err := store.UpsertSession(ctx, "open", "", "", model.StatusActive); err != nil {
		t.Fatalf("UpsertSession err: %v", err)
	}
	if _, err := store.UpsertSession(ctx, "done", "", "", model.StatusActive); err != nil {
		t.Fatalf("UpsertSession err: %v", err)
	}
	if _, err := store.SetSessionStatus(ctx, "done", model.StatusInactive); err != nil {
		t.Fatalf("SetSessionStatus err: %v", err)
	}

	active, err := store.ListSessions(ctx, model.FilterActive)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(active) != 1 || active[0].ID != "open" {
		t.Fatalf("unexpected active listing: %+v", active)
	}

	past, err := store.ListSessions(ctx, model.FilterPast)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(past) != 1 || past[0].ID != "done" {
		t.Fatalf("unexpected past listing: %+v", past)
	}

	all, err := store.ListSessions(ctx, model.FilterAll)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
}

func TestListSessionsSummaries(t *testing.T) {
	store := chat.NewMemoryStore()
	ctx := context.Background()

	if _, err := store.UpsertSession(ctx, "sess-1", "", "", model.StatusActive); err != nil {
		t.Fatalf("UpsertSession err: %v", err)
	}
	for _, body := range []string{"first", "second"} {
		if _, err := store.CreateMessage(ctx, model.Message{
			SessionID:  "sess-1",
			SenderType: model.SenderUser,
			Content:    body,
		}); err != nil {
			t.Fatalf("CreateMessage err: %v", err)
		}
	}

	all, err := store.ListSessions(ctx, model.FilterAll)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if all[0].MessageCount != 2 {
		t.Fatalf("expected message count 2, got %d", all[0].MessageCount)
	}
	if all[0].LastMessage == nil || all[0].LastMessage.Content != "second" {
		t.Fatalf("unexpected last message snapshot: %+v", all[0].LastMessage)
	}
}

func TestSetSessionStatusNotFound(t *testing.T) {
	store := chat.NewMemoryStore()

	if _, err := store.SetSessionStatus(context.Background(), "missing", model.StatusInactive); err != chat.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
