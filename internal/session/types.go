package session

import (
	"encoding/json"
	"time"
)

// DispatchRequest is the payload that asks the agent to join a room.
type DispatchRequest struct {
	RoomURL   string          `json:"room_url"`
	RoomToken string          `json:"room_token"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// DispatchResponse returns created session metadata.
type DispatchResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
}
