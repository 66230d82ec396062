package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/support-relay/internal/model/chat"
	chatservice "github.com/zhouzirui/support-relay/internal/service/chat"
	"github.com/zhouzirui/support-relay/pkg/utils"
)

// Handler serves the read-and-manage surface staff dashboards and
// reconnecting visitors use to catch up on history.
type Handler struct {
	store chatservice.Store
}

// New creates the REST handler.
func New(store chatservice.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}/messages", h.handleListMessages)
	r.Patch("/sessions/{sessionID}", h.handleUpdateSession)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filter := chat.Filter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = chat.FilterAll
	}
	if !filter.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "filter must be all, active or past")
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), filter)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.store.ListMessages(r.Context(), sessionID)
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		AutoReply *bool        `json:"autoReply"`
		Status    *chat.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AutoReply == nil && payload.Status == nil {
		utils.RespondError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if payload.Status != nil && !payload.Status.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "status must be active, inactive or closed")
		return
	}

	var (
		session chat.Session
		err     error
	)
	if payload.AutoReply != nil {
		session, err = h.store.SetAutoReply(r.Context(), sessionID, *payload.AutoReply)
	}
	if err == nil && payload.Status != nil {
		session, err = h.store.SetSessionStatus(r.Context(), sessionID, *payload.Status)
	}

	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to update session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, session)
}
