// Package server exposes the HTTP entry point that starts refactoring
// sessions.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Varamadon/auto-refactor/internal/agent"
	"github.com/Varamadon/auto-refactor/internal/logger"
)

const maxLocationBytes = 4 << 10

// Sessions starts sessions and reports their state.
type Sessions interface {
	Start(sessionID string) error
	State(sessionID string) (agent.SessionState, error)
}

// Registrar records where the tool of a session lives.
type Registrar interface {
	Register(sessionID, location string)
	Remove(sessionID string) (string, bool)
}

type Server struct {
	sessions Sessions
	tools    Registrar

	// mu serializes start requests so the active check, the tool
	// registration and the session start happen as one step.
	mu sync.Mutex
}

func New(sessions Sessions, tools Registrar) *Server {
	return &Server{sessions: sessions, tools: tools}
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /refactor/{repositoryId}/start", s.start)
	mux.HandleFunc("GET /refactor/{repositoryId}", s.status)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	return logRequests(mux)
}

// start registers the tool location sent as the body and starts the
// session for the repository.
func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("repositoryId")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLocationBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	location := strings.TrimSpace(string(body))
	if location == "" {
		http.Error(w, "tool location required", http.StatusBadRequest)
		return
	}

	if err := s.register(id, location); err != nil {
		switch {
		case errors.Is(err, agent.ErrSessionActive):
			http.Error(w, "session already active", http.StatusConflict)
		case errors.Is(err, agent.ErrStopped):
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		default:
			logger.L.Error("failed to start session", "session_id", id, "error", err)
			http.Error(w, "failed to start session", http.StatusInternalServerError)
		}
		return
	}

	logger.L.Info("refactoring requested", "session_id", id, "location", location)
	w.WriteHeader(http.StatusAccepted)
}

// register records the tool location and starts the session. The location
// is only kept when the session actually started.
func (s *Server) register(id, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sessions.State(id); err == nil {
		return fmt.Errorf("start %s: %w", id, agent.ErrSessionActive)
	}
	s.tools.Register(id, location)
	if err := s.sessions.Start(id); err != nil {
		if !errors.Is(err, agent.ErrSessionActive) {
			s.tools.Remove(id)
		}
		return err
	}
	return nil
}

type statusResponse struct {
	SessionID string             `json:"session_id"`
	State     agent.SessionState `json:"state"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("repositoryId")
	state, err := s.sessions.State(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statusResponse{SessionID: id, State: state}); err != nil {
		logger.L.Warn("failed to write status", "session_id", id, "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests tags each request with an id and logs its outcome.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.L.Info("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
