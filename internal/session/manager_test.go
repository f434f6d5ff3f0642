package session

import "testing"

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	s := m.Create("u1", "room-1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if s.State != StateInitializing {
		t.Fatalf("State = %q, want %q", s.State, StateInitializing)
	}

	if err := m.Activate(s.ID); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateActive {
		t.Fatalf("State = %q, want %q", got.State, StateActive)
	}

	won, err := m.BeginTermination(s.ID, "stream_end")
	if err != nil {
		t.Fatalf("BeginTermination() error = %v", err)
	}
	if !won {
		t.Fatalf("first BeginTermination should win the transition")
	}

	if err := m.MarkClosed(s.ID); err != nil {
		t.Fatalf("MarkClosed() error = %v", err)
	}
	got, _ = m.Get(s.ID)
	if got.State != StateClosed || got.EndReason != "stream_end" {
		t.Fatalf("unexpected final session: %+v", got)
	}
}

func TestBeginTerminationSingleWinner(t *testing.T) {
	m := NewManager()
	s := m.Create("u1", "room-1")
	_ = m.Activate(s.ID)

	won, _ := m.BeginTermination(s.ID, "watchdog_timeout")
	if !won {
		t.Fatalf("first trigger should win")
	}
	won, _ = m.BeginTermination(s.ID, "error")
	if won {
		t.Fatalf("second trigger must not win")
	}

	got, _ := m.Get(s.ID)
	if got.EndReason != "watchdog_timeout" {
		t.Fatalf("EndReason = %q, want first trigger preserved", got.EndReason)
	}
}

func TestActivateRequiresInitializing(t *testing.T) {
	m := NewManager()
	s := m.Create("u1", "room-1")
	_ = m.Activate(s.ID)
	if err := m.Activate(s.ID); err == nil {
		t.Fatalf("Activate() on active session should fail")
	}
}

func TestGetUnknownSession(t *testing.T) {
	m := NewManager()
	if _, err := m.Get("nope"); err != ErrNotFound {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestActiveCount(t *testing.T) {
	m := NewManager()
	a := m.Create("u1", "room-1")
	m.Create("u2", "room-2")
	if got := m.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount() = %d, want 2", got)
	}
	_, _ = m.BeginTermination(a.ID, "error")
	_ = m.MarkClosed(a.ID)
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", got)
	}
}
