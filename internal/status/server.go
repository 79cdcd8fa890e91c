// Package status exposes a small read-only HTTP surface over the run
// history and evidence backlog, for dashboards and health checks.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/member-insights/internal/logger"
	"github.com/ziadkadry99/member-insights/internal/runlog"
	"github.com/ziadkadry99/member-insights/internal/warehouse"
)

// Server serves run summaries and backlog counts.
type Server struct {
	addr       string
	runs       *runlog.Store
	wh         warehouse.Connector
	log        *logger.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a status server listening on addr once started.
func New(addr string, runs *runlog.Store, wh warehouse.Connector, log *logger.Logger) *Server {
	s := &Server{
		addr: addr,
		runs: runs,
		wh:   wh,
		log:  log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/runs", s.handleRuns)
	r.Get("/backlog", s.handleBacklog)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	summaries, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("failed to load run summaries", "error", err)
		http.Error(w, "failed to load run summaries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"runs": summaries})
}

func (s *Server) handleBacklog(w http.ResponseWriter, r *http.Request) {
	stats, err := s.wh.CountByStatus(r.Context())
	if err != nil {
		s.log.Error("failed to count evidence rows", "error", err)
		http.Error(w, "failed to count evidence rows", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.log.Info("status server listening", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
