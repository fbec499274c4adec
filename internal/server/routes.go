package server

import (
	"log"
	"net/http"

	"github.com/commonplacehq/commonplace/internal/server/handlers"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health
	mux.HandleFunc("GET /health", handlers.Health)

	mem := &handlers.MemoryHandler{Store: s.store, Fetcher: s.fetcher}

	// Action dispatch: {action, payload} envelope
	mux.HandleFunc("POST /v1/actions", mem.Dispatch)

	// Memory endpoints
	mux.HandleFunc("POST /v1/memory/scrape", mem.Scrape)
	mux.HandleFunc("POST /v1/memory/store", mem.StoreEntry)
	mux.HandleFunc("GET /v1/memory/entry/{key}", mem.Get)
	mux.HandleFunc("POST /v1/memory/search", mem.Search)
	mux.HandleFunc("GET /v1/memory/list", mem.List)
	mux.HandleFunc("GET /v1/memory/stats", mem.Stats)
	mux.HandleFunc("DELETE /v1/memory/entry/{key}", mem.Delete)

	// Agent registry
	agents := &handlers.AgentsHandler{Store: s.store}
	mux.HandleFunc("POST /v1/agents/register", agents.Register)
	mux.HandleFunc("GET /v1/agents", agents.List)
	mux.HandleFunc("DELETE /v1/agents/{name}", agents.Deregister)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
