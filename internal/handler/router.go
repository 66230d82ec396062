package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/zhouzirui/support-relay/internal/handler/chat"
	wsHandler "github.com/zhouzirui/support-relay/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/support-relay/internal/middleware"
	"github.com/zhouzirui/support-relay/internal/service/chat"
	"github.com/zhouzirui/support-relay/internal/service/engine"
)

// NewRouter wires HTTP routes to the relay's services.
func NewRouter(store chat.Store, eng *engine.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	restHandler := chatHandler.New(store)
	socketHandler := wsHandler.New(eng)

	r.Route("/api", func(api chi.Router) {
		restHandler.RegisterRoutes(api)
		socketHandler.RegisterRoutes(api)
	})

	return r
}
