package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/support-relay/internal/config"
	"github.com/zhouzirui/support-relay/internal/handler"
	"github.com/zhouzirui/support-relay/internal/service/ai"
	chatservice "github.com/zhouzirui/support-relay/internal/service/chat"
	"github.com/zhouzirui/support-relay/internal/service/engine"
	"github.com/zhouzirui/support-relay/internal/service/hub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Pick the persistence backend.
	var store chatservice.Store
	if cfg.Database.URL != "" {
		gormStore, err := chatservice.NewGormStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		store = gormStore
		log.Println("persistence: PostgreSQL")
	} else {
		store = chatservice.NewMemoryStore()
		log.Println("persistence: in-memory (sessions are lost on restart)")
	}

	// Initialize the reply generator; a nil responder disables auto-reply.
	responder, err := ai.NewResponder(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize reply generator: %v", err)
		log.Println("continuing without automated replies")
		responder = nil
	} else if responder == nil {
		log.Println("reply generator credentials not configured, automated replies disabled")
	} else {
		log.Printf("reply generator initialized (provider=%s)", cfg.AI.Provider)
	}

	relay := engine.New(store, hub.New(), responder, engine.Config{
		ReplyTimeout: cfg.AI.ReplyTimeout,
		ReplyName:    cfg.AI.ReplyName,
	})

	router := handler.NewRouter(store, relay)

	startServer(ctx, cfg.Server, router)

	// Let in-flight automated replies settle before exiting.
	relay.Wait()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("support relay listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
