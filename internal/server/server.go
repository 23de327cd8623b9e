// Package server hosts the chat endpoint and the embedded single-page UI.
// The browser owns the conversation history and posts it on every turn.
package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/stellarlinkco/webchat/internal/completion"
	"github.com/stellarlinkco/webchat/internal/config"
	"github.com/stellarlinkco/webchat/internal/relay"
)

//go:embed static
var staticFiles embed.FS

// TurnHandler is the relay dependency, injectable for tests.
type TurnHandler interface {
	HandleTurn(ctx context.Context, messages []completion.Message) (*relay.Turn, error)
}

type Server struct {
	cfg    *config.Config
	relay  TurnHandler
	server *http.Server
}

func New(cfg *config.Config, handler TurnHandler) *Server {
	return &Server{
		cfg:   cfg,
		relay: handler,
	}
}

// Handler builds the route table. Exposed so tests can drive it through
// httptest without binding a port.
func (s *Server) Handler() (http.Handler, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("embed static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux, nil
}

func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: handler,
	}

	go func() {
		log.Printf("[server] listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[server] server error: %v", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Printf("[server] stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}
