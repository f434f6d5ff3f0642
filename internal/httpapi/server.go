package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/agent"
	"github.com/optiflow/jarvis/internal/observability"
	"github.com/optiflow/jarvis/internal/session"
)

// Server is the operational HTTP surface: health probes, metrics, agent
// dispatch, and session inspection.
type Server struct {
	baseCtx      context.Context
	sessions     *session.Manager
	orchestrator *agent.Orchestrator
	metrics      *observability.Metrics
	logger       zerolog.Logger
	toolNames    []string
}

// New builds the server. baseCtx bounds dispatched session lifetimes;
// canceling it tears every running session down.
func New(
	baseCtx context.Context,
	sessions *session.Manager,
	orchestrator *agent.Orchestrator,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	toolNames []string,
) *Server {
	return &Server{
		baseCtx:      baseCtx,
		sessions:     sessions,
		orchestrator: orchestrator,
		metrics:      metrics,
		logger:       logger,
		toolNames:    toolNames,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/agent/dispatch", s.handleDispatch)
	r.Get("/v1/agent/sessions/{id}", s.handleGetSession)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  s.toolNames,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

// handleDispatch accepts an agent job and starts the session on its own
// goroutine. The response reports the registered session, not the outcome
// of joining the room.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req session.DispatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.orchestrator.Dispatch(s.baseCtx, req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_dispatch", err.Error())
		return
	}
	s.metrics.SessionEvents.WithLabelValues("dispatched").Inc()
	s.logger.Info().
		Str("session_id", sess.ID).
		Str("user_id", sess.UserID).
		Str("room_id", sess.RoomID).
		Msg("session dispatched")

	respondJSON(w, http.StatusAccepted, session.DispatchResponse{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		RoomID:    sess.RoomID,
		State:     sess.State,
		StartedAt: sess.StartedAt,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
