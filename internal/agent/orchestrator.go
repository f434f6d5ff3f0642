package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/conversation"
	"github.com/optiflow/jarvis/internal/memory"
	"github.com/optiflow/jarvis/internal/notify"
	"github.com/optiflow/jarvis/internal/observability"
	"github.com/optiflow/jarvis/internal/policy"
	"github.com/optiflow/jarvis/internal/presence"
	"github.com/optiflow/jarvis/internal/protocol"
	"github.com/optiflow/jarvis/internal/room"
	"github.com/optiflow/jarvis/internal/session"
	"github.com/optiflow/jarvis/internal/speech"
	"github.com/optiflow/jarvis/internal/tools"
)

const (
	defaultSystemPrompt = "You are a helpful voice assistant for Optiflow. Your name is Jarvis. " +
		"When a user connects, always greet them right away with a friendly introduction. " +
		"Keep your responses clear and concise."

	greetingLine      = "Hello, I'm Jarvis, your voice assistant for Optiflow. How can I help you today?"
	inactivityGoodbye = "I'll be here when you return. Goodbye!"
	errorApology      = "I'm sorry, but I've encountered an internal error. Please try reconnecting."

	cleanupTimeout = 10 * time.Second
)

// Terminal session reasons recorded on teardown and reported to the webhook.
const (
	ReasonUserInactive  = "user_inactive"
	ReasonInternalError = "internal_error"
	ReasonRoomClosed    = "room_closed"
	ReasonShutdown      = "shutdown"
)

// Orchestrator owns the full lifecycle of agent sessions: join a room,
// drive the event loop, dispatch tools, watch presence, and tear down
// exactly once.
type Orchestrator struct {
	sessions        *session.Manager
	rooms           room.Connector
	synth           speech.Synthesizer
	registry        *tools.Registry
	checker         presence.Checker
	notifier        *notify.Notifier
	store           memory.Store
	metrics         *observability.Metrics
	logger          zerolog.Logger
	systemPrompt    string
	pollInterval    time.Duration
	inactivityLimit time.Duration
	memoryLimit     int
}

func NewOrchestrator(
	sessions *session.Manager,
	rooms room.Connector,
	synth speech.Synthesizer,
	registry *tools.Registry,
	checker presence.Checker,
	notifier *notify.Notifier,
	store memory.Store,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	systemPrompt string,
	pollInterval time.Duration,
	inactivityLimit time.Duration,
	memoryLimit int,
) *Orchestrator {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	if memoryLimit <= 0 {
		memoryLimit = 8
	}
	return &Orchestrator{
		sessions:        sessions,
		rooms:           rooms,
		synth:           synth,
		registry:        registry,
		checker:         checker,
		notifier:        notifier,
		store:           store,
		metrics:         metrics,
		logger:          logger,
		systemPrompt:    systemPrompt,
		pollInterval:    pollInterval,
		inactivityLimit: inactivityLimit,
		memoryLimit:     memoryLimit,
	}
}

// Dispatch validates the request, registers a session, and runs it on its
// own goroutine. ctx bounds the session's lifetime, not the HTTP request.
func (o *Orchestrator) Dispatch(ctx context.Context, req session.DispatchRequest) (*session.Session, error) {
	if strings.TrimSpace(req.RoomURL) == "" {
		return nil, errors.New("room_url is required")
	}
	if strings.TrimSpace(req.RoomID) == "" {
		return nil, errors.New("room_id is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errors.New("user_id is required")
	}
	sess := o.sessions.Create(req.UserID, req.RoomID)
	go o.Run(ctx, sess.ID, req)
	return sess, nil
}

// Run drives one session from room join to teardown. It blocks until the
// session is closed and never returns an error: every failure path ends in
// the same best-effort cleanup.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, req session.DispatchRequest) {
	logger := o.logger.With().
		Str("session_id", sessionID).
		Str("user_id", req.UserID).
		Str("room_id", req.RoomID).
		Logger()

	rawMemory := memoryContextFrom(req.Metadata)
	if rawMemory == nil {
		rawMemory = o.recallMemory(ctx, req.UserID, logger)
	}
	r := &sessionRun{
		o:      o,
		id:     sessionID,
		req:    req,
		logger: logger,
		convo:  conversation.Build(o.systemPrompt, rawMemory),
	}

	connectStart := time.Now()
	handle, events, err := o.rooms.Connect(ctx, req.RoomURL, req.RoomToken)
	o.metrics.ObserveStage("room_connect", float64(time.Since(connectStart).Milliseconds()))
	if err != nil {
		logger.Error().Err(err).Msg("room connect failed")
		o.metrics.CollaboratorErrors.WithLabelValues("room", "connect_failed").Inc()
		r.terminate(ReasonInternalError)
		return
	}
	r.handle = handle

	if err := o.sessions.Activate(sessionID); err != nil {
		logger.Error().Err(err).Msg("session activation failed")
		r.terminate(ReasonInternalError)
		return
	}
	o.metrics.ActiveSessions.Inc()
	defer o.metrics.ActiveSessions.Dec()

	r.speak(ctx, greetingLine)
	r.convo.AppendAssistant(greetingLine)

	watchdogCtx, cancelWatchdog := context.WithCancel(ctx)
	r.cancelWatchdog = cancelWatchdog
	watchdog := presence.NewWatchdog(o.checker, req.UserID, o.pollInterval, o.inactivityLimit, o.metrics, logger)
	go watchdog.Run(watchdogCtx)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("session loop panicked")
			r.terminate(ReasonInternalError)
		}
	}()

	logger.Info().Msg("session active")
	for {
		select {
		case <-ctx.Done():
			r.terminate(ReasonShutdown)
			return
		case <-watchdog.Timeout():
			logger.Info().Msg("user inactive past limit, leaving room")
			r.terminate(ReasonUserInactive)
			return
		case evt, ok := <-events:
			if !ok {
				logger.Info().Msg("room event stream ended")
				r.terminate(ReasonRoomClosed)
				return
			}
			if fatal := r.handleEvent(ctx, evt); fatal {
				r.terminate(ReasonInternalError)
				return
			}
		}
	}
}

// sessionRun carries the per-session state of one Run invocation.
type sessionRun struct {
	o              *Orchestrator
	id             string
	req            session.DispatchRequest
	logger         zerolog.Logger
	convo          *conversation.Context
	handle         room.Handle
	cancelWatchdog context.CancelFunc
	cleanupOnce    sync.Once
}

// handleEvent processes one session event. It returns true when the event
// is fatal for the session.
func (r *sessionRun) handleEvent(ctx context.Context, evt protocol.SessionEvent) bool {
	r.o.metrics.SessionEvents.WithLabelValues(string(evt.Type)).Inc()

	switch evt.Type {
	case protocol.EventTranscript:
		r.logger.Info().Str("text", evt.Text).Msg("user transcript")
		r.convo.AppendUser(evt.Text)
		r.persistTurn(ctx, "user", evt.Text)
		r.touch()
	case protocol.EventToolCall:
		r.handleToolCall(ctx, evt.Tool)
		r.touch()
	case protocol.EventAgentSpeakingStarted:
		r.logger.Debug().Msg("agent speaking started")
	case protocol.EventAgentSpeakingFinished:
		r.logger.Debug().Msg("agent speaking finished")
	case protocol.EventError:
		r.logger.Error().
			Str("code", evt.Code).
			Str("detail", evt.Detail).
			Msg("fatal session event")
		return true
	}
	return false
}

func (r *sessionRun) handleToolCall(ctx context.Context, call *protocol.ToolCallEvent) {
	result := r.o.registry.Invoke(ctx, call.Name, call.Parameters, tools.Identity{
		UserID:    r.req.UserID,
		SessionID: r.id,
		RoomID:    r.req.RoomID,
	})

	r.convo.AppendToolResult(call.Name, result.Text())
	r.persistTurn(ctx, "tool", fmt.Sprintf("%s: %s", call.Name, result.Text()))

	msg := protocol.ToolResultMessage{
		Type:    protocol.TypeToolResult,
		CallID:  call.CallID,
		Name:    call.Name,
		Payload: result.Text(),
		IsError: result.IsError,
	}
	if err := r.handle.PublishData(ctx, msg); err != nil {
		r.logger.Warn().Err(err).Str("tool", call.Name).Msg("tool result publish failed")
		r.o.metrics.CollaboratorErrors.WithLabelValues("room", "publish_failed").Inc()
	}
}

// persistTurn writes one turn to the memory store, redacting PII first.
// Store failures are logged and never fatal.
func (r *sessionRun) persistTurn(ctx context.Context, role, content string) {
	redacted, changed := policy.RedactPII(content)
	rec := memory.TurnRecord{
		ID:          uuid.NewString(),
		UserID:      r.req.UserID,
		SessionID:   r.id,
		RoomID:      r.req.RoomID,
		Role:        role,
		Content:     redacted,
		PIIRedacted: changed,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.o.store.SaveTurn(ctx, rec); err != nil {
		r.logger.Warn().Err(err).Str("role", role).Msg("turn persistence failed")
		r.o.metrics.CollaboratorErrors.WithLabelValues("memory", "save_failed").Inc()
	}
}

func (r *sessionRun) touch() {
	if err := r.o.sessions.Touch(r.id); err != nil {
		r.logger.Warn().Err(err).Msg("session touch failed")
	}
}

func (r *sessionRun) speak(ctx context.Context, text string) {
	start := time.Now()
	err := r.o.synth.Synthesize(ctx, text)
	r.o.metrics.ObserveStage("synthesize", float64(time.Since(start).Milliseconds()))
	if err != nil {
		r.logger.Warn().Err(err).Msg("speech synthesis failed")
		r.o.metrics.CollaboratorErrors.WithLabelValues("speech", "synthesize_failed").Inc()
	}
}

// terminate runs the multi-step teardown at most once per session. Each
// step is best-effort: a failing step is logged and the next one still runs.
func (r *sessionRun) terminate(reason string) {
	first, err := r.o.sessions.BeginTermination(r.id, reason)
	if err != nil {
		r.logger.Error().Err(err).Msg("termination transition failed")
		return
	}
	if !first {
		return
	}

	r.cleanupOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		r.logger.Info().Str("reason", reason).Msg("terminating session")
		r.o.metrics.SessionEvents.WithLabelValues("cleanup").Inc()

		if r.cancelWatchdog != nil {
			r.cancelWatchdog()
		}

		if r.handle != nil {
			r.step("publish_status", func() error {
				return r.handle.PublishData(ctx, closingMessage(reason))
			})
			r.step("spoken_goodbye", func() error {
				return r.o.synth.Synthesize(ctx, closingLine(reason))
			})
		}

		r.step("webhook", func() error {
			r.o.notifier.Notify(ctx, notify.EventAgentLeave, r.req.UserID, r.req.RoomID, reason)
			return nil
		})

		if r.handle != nil {
			r.step("disconnect", func() error {
				return r.handle.Disconnect()
			})
		}

		if err := r.o.sessions.MarkClosed(r.id); err != nil {
			r.logger.Error().Err(err).Msg("session close transition failed")
		}
		r.logger.Info().Str("reason", reason).Msg("session closed")
	})
}

// step runs one cleanup action, absorbing both errors and panics so the
// remaining steps always execute.
func (r *sessionRun) step(name string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("step", name).Msg("cleanup step panicked")
		}
	}()
	if err := fn(); err != nil {
		r.logger.Warn().Err(err).Str("step", name).Msg("cleanup step failed")
	}
}

func closingMessage(reason string) any {
	if reason == ReasonInternalError {
		return protocol.NewInternalError()
	}
	return protocol.NewLeavingStatus(reason)
}

func closingLine(reason string) string {
	if reason == ReasonInternalError {
		return errorApology
	}
	return inactivityGoodbye
}

// recallMemory loads recent persisted turns for the user when the dispatch
// carried no memory context. Recall failures degrade to an empty context.
func (o *Orchestrator) recallMemory(ctx context.Context, userID string, logger zerolog.Logger) json.RawMessage {
	records, err := o.store.RecentContext(ctx, userID, o.memoryLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("memory recall failed")
		o.metrics.CollaboratorErrors.WithLabelValues("memory", "recall_failed").Inc()
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	items := make([]conversation.MemoryItem, 0, len(records))
	for _, rec := range records {
		items = append(items, conversation.MemoryItem{Role: rec.Role, Content: rec.Content})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return raw
}

type dispatchMetadata struct {
	MemoryContext json.RawMessage `json:"memoryContext"`
}

// memoryContextFrom pulls the prior-conversation items out of the dispatch
// metadata. Missing or malformed metadata yields no memory context.
func memoryContextFrom(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var md dispatchMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil
	}
	return md.MemoryContext
}
