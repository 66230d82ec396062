// Package ws terminates visitor and staff WebSocket connections and feeds
// their events into the session engine.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/support-relay/internal/model/chat"
	"github.com/zhouzirui/support-relay/internal/service/engine"
	"github.com/zhouzirui/support-relay/internal/service/hub"
)

const readTimeout = 60 * time.Second

// Handler upgrades HTTP requests and runs the per-connection read loop.
type Handler struct {
	engine   *engine.Engine
	validate *validator.Validate
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(eng *engine.Engine) *Handler {
	return &Handler{
		engine:   eng,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleSocket)
}

type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := hub.NewClient(conn)
	go client.WritePump()

	defer func() {
		// The request context is torn down with the handler; disconnect
		// cleanup must still run.
		h.engine.Disconnect(context.Background(), client)
		client.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	log.Printf("[ws] new connection from %s", r.RemoteAddr)

	for {
		var env inboundEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.dispatch(r, client, env)
	}
}

func (h *Handler) dispatch(r *http.Request, client *hub.Client, env inboundEnvelope) {
	ctx := r.Context()

	switch env.Event {
	case "user:connect":
		var p chat.ConnectPayload
		if !h.decode(client, env, &p) {
			return
		}
		if p.UserIP == "" {
			p.UserIP = remoteIP(r)
		}
		if p.UserAgent == "" {
			p.UserAgent = r.UserAgent()
		}
		if sessionID := h.engine.Connect(ctx, client, p); sessionID != "" {
			log.Printf("[ws] connection %s joined session %s", r.RemoteAddr, sessionID)
		}

	case "admin:join":
		h.engine.AdminJoin(client)

	case "message:user":
		var p chat.InboundMessage
		if !h.decode(client, env, &p) {
			return
		}
		h.engine.UserMessage(ctx, client, p)

	case "message:admin":
		var p chat.InboundMessage
		if !h.decode(client, env, &p) {
			return
		}
		h.engine.AdminMessage(ctx, client, p)

	case "typing:start":
		var p chat.TypingPayload
		if !h.decode(client, env, &p) {
			return
		}
		h.engine.TypingStart(client, p)

	case "typing:stop":
		var p chat.TypingPayload
		if !h.decode(client, env, &p) {
			return
		}
		h.engine.TypingStop(client, p)

	case "session:close":
		var p chat.ClosePayload
		if !h.decode(client, env, &p) {
			return
		}
		h.engine.CloseSession(ctx, client, p)

	default:
		h.sendError(client, "unsupported event: "+env.Event)
	}
}

// decode unmarshals the payload and checks its declared shape. Failures are
// reported to the offending connection only.
func (h *Handler) decode(client *hub.Client, env inboundEnvelope, out any) bool {
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			h.sendError(client, "invalid "+env.Event+" payload")
			return false
		}
	}
	if err := h.validate.Struct(out); err != nil {
		h.sendError(client, "invalid "+env.Event+" payload")
		return false
	}
	return true
}

func (h *Handler) sendError(client *hub.Client, message string) {
	client.Enqueue(hub.Envelope{
		Event: "error",
		Data:  map[string]string{"message": message},
	})
}

func remoteIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from the forwarding
	// headers when present.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
