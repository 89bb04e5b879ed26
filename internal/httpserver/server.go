// Package httpserver exposes the health snapshot and Prometheus metrics
// over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/tipsai/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// ChunkCounter reports the number of indexed chunks.
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// Server serves /healthz and /metrics.
type Server struct {
	addr    string
	metrics *metrics.Metrics
	chunks  ChunkCounter
	model   string
	log     *slog.Logger
}

// New creates a server bound to addr. chunks may be nil.
func New(addr string, m *metrics.Metrics, chunks ChunkCounter, model string, log *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		metrics: m,
		chunks:  chunks,
		model:   model,
		log:     log.With("component", "http_server"),
	}
}

type healthResponse struct {
	Status string `json:"status"`
	metrics.Snapshot
	Chunks *int   `json:"chunks,omitempty"`
	Model  string `json:"model"`
}

// Router returns the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Snapshot: s.metrics.Snapshot(),
		Model:    s.model,
	}
	if s.chunks != nil {
		n, err := s.chunks.Count(r.Context())
		if err != nil {
			s.log.WarnContext(r.Context(), "Chunk count unavailable", "error", err)
			resp.Status = "degraded"
		} else {
			resp.Chunks = &n
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Graceful shutdown failed", "error", err)
		_ = srv.Close()
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
