package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/observability"
)

// Identity carries who a tool call is executed on behalf of.
type Identity struct {
	UserID    string
	SessionID string
	RoomID    string
}

// Result is the uniform payload returned from any tool invocation. It is
// always serializable to text so it can be re-injected into the conversation.
type Result struct {
	Payload string
	IsError bool
}

// Text returns the model-visible serialization of the result.
func (r Result) Text() string { return r.Payload }

// Success marshals a structured success payload.
func Success(v any) Result {
	body, err := json.Marshal(v)
	if err != nil {
		return Errorf("tool result not serializable: %v", err)
	}
	return Result{Payload: string(body)}
}

// Errorf builds a structured error payload. Tool failures never raise past
// the invocation boundary; they travel back to the model as this shape.
func Errorf(format string, args ...any) Result {
	body, _ := json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
	return Result{Payload: string(body), IsError: true}
}

// Handler executes one named external action.
type Handler interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, params map[string]any, id Identity) Result
}

// Registry is the name-keyed tool set built once at startup.
type Registry struct {
	handlers map[string]Handler
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewRegistry(metrics *observability.Metrics, logger zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		metrics:  metrics,
		logger:   logger,
	}
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Names lists registered tools in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches one tool call. An unknown tool name is an error for that
// call only; the session continues. Handler panics are converted to error
// results for the same reason.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any, id Identity) (out Result) {
	h, ok := r.handlers[name]
	if !ok {
		r.logger.Warn().Str("tool", name).Str("session_id", id.SessionID).Msg("unknown tool requested")
		if r.metrics != nil {
			r.metrics.ToolInvocations.WithLabelValues(name, "unknown").Inc()
		}
		return Errorf("unknown tool: %s", name)
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("tool", name).Interface("panic", rec).Msg("tool handler panicked")
			out = Errorf("tool %s failed internally", name)
		}
		elapsed := time.Since(start)
		outcome := "ok"
		if out.IsError {
			outcome = "error"
		}
		if r.metrics != nil {
			r.metrics.ToolInvocations.WithLabelValues(name, outcome).Inc()
			r.metrics.ObserveToolLatency(elapsed)
		}
		r.logger.Info().
			Str("tool", name).
			Str("session_id", id.SessionID).
			Str("outcome", outcome).
			Dur("elapsed", elapsed).
			Msg("tool invoked")
	}()

	return h.Invoke(ctx, params, id)
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func mapParam(params map[string]any, key string) map[string]any {
	v, ok := params[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}
