package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies session events delivered by the room transport.
type EventType string

const (
	EventTranscript            EventType = "transcript"
	EventToolCall              EventType = "tool_call"
	EventAgentSpeakingStarted  EventType = "agent_speaking_started"
	EventAgentSpeakingFinished EventType = "agent_speaking_finished"
	EventError                 EventType = "error"
)

var ErrUnsupportedEvent = errors.New("unsupported session event")

// SessionEvent is one item of the ordered per-session event stream.
type SessionEvent struct {
	Type   EventType      `json:"type"`
	TSMs   int64          `json:"ts_ms,omitempty"`
	Text   string         `json:"text,omitempty"`
	Tool   *ToolCallEvent `json:"tool,omitempty"`
	Code   string         `json:"code,omitempty"`
	Detail string         `json:"detail,omitempty"`
}

// ToolCallEvent is a structured tool request from the language model.
type ToolCallEvent struct {
	CallID     string         `json:"call_id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ParseSessionEvent decodes and validates one raw event frame.
func ParseSessionEvent(raw []byte) (SessionEvent, error) {
	var evt SessionEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return SessionEvent{}, fmt.Errorf("invalid event frame: %w", err)
	}

	switch evt.Type {
	case EventTranscript:
		if evt.Text == "" {
			return SessionEvent{}, errors.New("transcript event missing text")
		}
	case EventToolCall:
		if evt.Tool == nil || evt.Tool.Name == "" {
			return SessionEvent{}, errors.New("tool_call event missing tool name")
		}
	case EventAgentSpeakingStarted, EventAgentSpeakingFinished:
	case EventError:
		if evt.Code == "" {
			evt.Code = "unknown"
		}
	default:
		return SessionEvent{}, ErrUnsupportedEvent
	}
	return evt, nil
}

// MessageType identifies data messages published to the client.
type MessageType string

const (
	TypeErrorMessage MessageType = "error"
	TypeAgentStatus  MessageType = "agent_status"
	TypeToolResult   MessageType = "tool_result"
)

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type AgentStatus struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

type ToolResultMessage struct {
	Type    MessageType `json:"type"`
	CallID  string      `json:"call_id"`
	Name    string      `json:"name"`
	Payload string      `json:"payload"`
	IsError bool        `json:"is_error"`
}

// NewInternalError builds the data message sent before an error teardown.
func NewInternalError() ErrorMessage {
	return ErrorMessage{
		Type:    TypeErrorMessage,
		Message: "An internal error occurred with the agent.",
	}
}

// NewLeavingStatus builds the data message sent before a planned teardown.
func NewLeavingStatus(reason string) AgentStatus {
	return AgentStatus{
		Type:   TypeAgentStatus,
		Status: "leaving_room",
		Reason: reason,
	}
}
