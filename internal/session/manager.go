package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the session lifecycle phase. Transitions only move forward:
// initializing -> active -> terminating -> closed.
type State string

const (
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateTerminating  State = "terminating"
	StateClosed       State = "closed"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID             string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	RoomID         string    `json:"room_id"`
	State          State     `json:"state"`
	EndReason      string    `json:"end_reason,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) Create(userID, roomID string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		RoomID:         roomID,
		State:          StateInitializing,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Activate moves a session from initializing to active.
func (m *Manager) Activate(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.State != StateInitializing {
		return fmt.Errorf("cannot activate session in state %q", s.State)
	}
	s.State = StateActive
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// BeginTermination records the first termination trigger. It reports whether
// this call won the transition; later triggers observe false and must not
// start a second cleanup.
func (m *Manager) BeginTermination(sessionID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, ErrNotFound
	}
	if s.State == StateTerminating || s.State == StateClosed {
		return false, nil
	}
	s.State = StateTerminating
	s.EndReason = reason
	s.LastActivityAt = time.Now().UTC()
	return true, nil
}

// MarkClosed finishes the lifecycle after cleanup completed.
func (m *Manager) MarkClosed(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.State = StateClosed
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.State == StateActive || s.State == StateInitializing {
			count++
		}
	}
	return count
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
