// Package httpadmin exposes the radar engine's admin surface: liveness,
// frame-catalog readiness, a playback/alert status snapshot, and
// Prometheus metrics.
package httpadmin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/radar-overlay/internal/domain"
)

const (
	readTimeout    = 10 * time.Second
	writeTimeout   = 10 * time.Second
	idleTimeout    = 60 * time.Second
	readyzDeadline = 2 * time.Second
)

// EngineStatus is the slice of the radar engine the admin endpoints read.
type EngineStatus interface {
	CheckReadiness(ctx context.Context) error
	Frames() domain.FrameSet
	CurrentIndex() int
	IsPlaying() bool
	AlertCache() []domain.Alert
}

type readyResponse struct {
	Status      string `json:"status"`
	Frames      int    `json:"frames"`
	NewestFrame string `json:"newest_frame,omitempty"` // RFC 3339
	Error       string `json:"error,omitempty"`
}

type statusResponse struct {
	Frames       int    `json:"frames"`
	NewestFrame  string `json:"newest_frame,omitempty"`
	CurrentIndex int    `json:"current_index"`
	Playing      bool   `json:"playing"`
	ActiveAlerts int    `json:"active_alerts"`
}

// Server serves the admin endpoints for one engine instance.
type Server struct {
	engine     EngineStatus
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer routes /healthz, /readyz, /statusz, and /metrics for the
// given engine.
func NewServer(addr string, engine EngineStatus, logger *slog.Logger) *Server {
	s := &Server{engine: engine, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /statusz", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("admin server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports not-ready until the first frame catalog has loaded,
// and includes the loaded window so probes can see what the engine holds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyzDeadline)
	defer cancel()

	frames := s.engine.Frames()
	resp := readyResponse{
		Status:      "ready",
		Frames:      len(frames),
		NewestFrame: newestFrameTime(frames),
	}
	if err := s.engine.CheckReadiness(ctx); err != nil {
		resp.Status = "not ready"
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	frames := s.engine.Frames()
	s.writeJSON(w, http.StatusOK, statusResponse{
		Frames:       len(frames),
		NewestFrame:  newestFrameTime(frames),
		CurrentIndex: s.engine.CurrentIndex(),
		Playing:      s.engine.IsPlaying(),
		ActiveAlerts: len(s.engine.AlertCache()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("admin response encode failed", "error", err)
	}
}

func newestFrameTime(frames domain.FrameSet) string {
	if len(frames) == 0 {
		return ""
	}
	return frames[frames.LastIndex()].SourceTime.Format(time.RFC3339)
}
