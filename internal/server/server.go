// Package server exposes the mastery engine over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
	"github.com/p-n-ai/pai-mastery/internal/diagnosis"
	"github.com/p-n-ai/pai-mastery/internal/difficulty"
	"github.com/p-n-ai/pai-mastery/internal/mastery"
)

// maxBodyBytes caps evidence request bodies.
const maxBodyBytes = 64 << 10

// Check is a named readiness probe, for example a database ping.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config holds the server's dependencies.
type Config struct {
	Graph    *curriculum.Graph
	Store    mastery.Store
	Recorder *mastery.Recorder
	Engine   *diagnosis.Engine
	Checks   []Check
	Now      func() time.Time
}

// Server routes HTTP requests to the curriculum, recorder and engine.
type Server struct {
	graph    *curriculum.Graph
	store    mastery.Store
	recorder *mastery.Recorder
	engine   *diagnosis.Engine
	checks   []Check
	now      func() time.Time
	mux      *http.ServeMux
}

// New creates a server with all routes registered.
func New(cfg Config) (*Server, error) {
	if cfg.Graph == nil || cfg.Store == nil || cfg.Recorder == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("graph, store, recorder and engine are required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		graph:    cfg.Graph,
		store:    cfg.Store,
		recorder: cfg.Recorder,
		engine:   cfg.Engine,
		checks:   cfg.Checks,
		now:      now,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)

	s.mux.HandleFunc("GET /v1/topics", s.handleListTopics)
	s.mux.HandleFunc("GET /v1/topics/{id}", s.handleGetTopic)
	s.mux.HandleFunc("GET /v1/topics/{id}/prerequisites", s.handlePrerequisites)

	s.mux.HandleFunc("GET /v1/learners/{learner}/topics/{topic}/diagnosis", s.handleDiagnosis)
	s.mux.HandleFunc("GET /v1/learners/{learner}/topics/{topic}/practice", s.handlePractice)
	s.mux.HandleFunc("POST /v1/learners/{learner}/evidence", s.handleEvidence)
	s.mux.HandleFunc("GET /v1/learners/{learner}/next", s.handleNext)
	s.mux.HandleFunc("GET /v1/learners/{learner}/reviews", s.handleReviews)
	s.mux.HandleFunc("GET /v1/learners/{learner}/export.xlsx", s.handleExport)
	s.mux.HandleFunc("GET /v1/learners/{learner}/stream", s.handleStream)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, c := range s.checks {
		if err := c.Probe(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"check":  c.Name,
			})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, curriculum.ErrTopicNotFound), errors.Is(err, curriculum.ErrGradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, mastery.ErrInvalidEvidence), errors.Is(err, mastery.ErrUnknownSkill),
		errors.Is(err, difficulty.ErrUnknownBand):
		return http.StatusBadRequest
	case errors.Is(err, mastery.ErrUpdateConflict):
		return http.StatusConflict
	case errors.Is(err, mastery.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
