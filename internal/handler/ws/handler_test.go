package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/support-relay/internal/handler/ws"
	model "github.com/zhouzirui/support-relay/internal/model/chat"
	chatservice "github.com/zhouzirui/support-relay/internal/service/chat"
	"github.com/zhouzirui/support-relay/internal/service/engine"
	"github.com/zhouzirui/support-relay/internal/service/hub"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *chatservice.MemoryStore) {
	t.Helper()

	store := chatservice.NewMemoryStore()
	eng := engine.New(store, hub.New(), nil, engine.Config{})
	handler := ws.New(eng)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, store
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("write %s err: %v", event, err)
	}
}

func read(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read err: %v", err)
	}
	return env
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	env := read(t, conn)
	if env.Event != want {
		t.Fatalf("expected event %s, got %s (%s)", want, env.Event, string(env.Data))
	}
	return env.Data
}

// syncConn flushes a connection's inbound queue by provoking an error reply
// for an unsupported event; once it arrives, everything sent before it has
// been processed.
func syncConn(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, "noop", nil)
	readEvent(t, conn, "error")
}

func TestConnectAndExchangeMessages(t *testing.T) {
	server, _ := newTestServer(t)

	admin := dial(t, server)
	send(t, admin, "admin:join", nil)
	syncConn(t, admin)

	user := dial(t, server)
	send(t, user, "user:connect", map[string]any{})

	var connected struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(readEvent(t, user, "user:connected"), &connected); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}
	if connected.SessionID == "" {
		t.Fatal("expected freshly minted session id")
	}

	send(t, user, "message:user", map[string]any{
		"sessionId": connected.SessionID,
		"message":   "Hello",
		"sender":    "Alice",
	})

	var ack model.MessagePayload
	if err := json.Unmarshal(readEvent(t, user, "message:sent"), &ack); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}
	if ack.Sender != "Alice" || ack.SenderType != "user" || ack.Message != "Hello" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	var relayed model.MessagePayload
	if err := json.Unmarshal(readEvent(t, admin, "message:new"), &relayed); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}
	if relayed.SessionID != connected.SessionID || relayed.Message != "Hello" {
		t.Fatalf("unexpected admin broadcast: %+v", relayed)
	}
}

func TestEmptyMessageYieldsErrorOnly(t *testing.T) {
	server, store := newTestServer(t)

	user := dial(t, server)
	send(t, user, "user:connect", map[string]any{})

	var connected struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(readEvent(t, user, "user:connected"), &connected); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}

	send(t, user, "message:user", map[string]any{
		"sessionId": connected.SessionID,
		"message":   "",
	})
	readEvent(t, user, "error")

	transcript, err := store.ListMessages(context.Background(), connected.SessionID)
	if err != nil {
		t.Fatalf("ListMessages err: %v", err)
	}
	if len(transcript) != 0 {
		t.Fatalf("empty body must not persist, got %d messages", len(transcript))
	}
}

func TestDisconnectMarksSessionInactive(t *testing.T) {
	server, store := newTestServer(t)

	user := dial(t, server)
	send(t, user, "user:connect", map[string]any{"sessionId": "sess-ws"})
	readEvent(t, user, "user:connected")

	user.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		session, err := store.GetSession(context.Background(), "sess-ws")
		if err != nil {
			t.Fatalf("GetSession err: %v", err)
		}
		if session.Status == model.StatusInactive {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session still %s after disconnect", session.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTypingSignalsRouteByClass(t *testing.T) {
	server, _ := newTestServer(t)

	admin := dial(t, server)
	send(t, admin, "admin:join", nil)
	syncConn(t, admin)

	user := dial(t, server)
	send(t, user, "user:connect", map[string]any{"sessionId": "sess-typing"})
	readEvent(t, user, "user:connected")

	send(t, user, "typing:start", map[string]any{
		"sessionId":  "sess-typing",
		"senderType": "user",
	})

	var tagged struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(readEvent(t, admin, "typing:user"), &tagged); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}
	if tagged.SessionID != "sess-typing" {
		t.Fatalf("typing signal carried session %q", tagged.SessionID)
	}

	send(t, admin, "typing:start", map[string]any{
		"sessionId":  "sess-typing",
		"senderType": "admin",
	})
	readEvent(t, user, "typing:admin")
}
