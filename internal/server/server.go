package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/commonplacehq/commonplace/internal/config"
	"github.com/commonplacehq/commonplace/internal/memory"
	"github.com/commonplacehq/commonplace/internal/webfetch"
)

// Server is the commonplace HTTP API server.
type Server struct {
	cfg     *config.Config
	http    *http.Server
	store   memory.Store
	fetcher *webfetch.Fetcher
}

// New creates a new Server around the given store and fetcher.
func New(cfg *config.Config, store memory.Store, fetcher *webfetch.Fetcher) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: withLogging(withCORS(mux)),
	}

	return s
}

// Handler returns the fully wired HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start starts the server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	log.Printf("Commonplace server listening on %s", s.http.Addr)
	log.Printf("Storage backend: %s", s.store.Backend())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := s.store.Close(); err != nil {
			log.Printf("Store close error: %v", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
