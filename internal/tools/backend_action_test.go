package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBackendActionSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/actions/execute" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		var req backendActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ActionType != "send_email" || req.UserID != "u1" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte("email queued"))
	}))
	defer srv.Close()

	tool := NewBackendActionTool(srv.URL, "key-1", time.Second, zerolog.Nop())
	res := tool.Invoke(context.Background(), map[string]any{
		"action_type": "send_email",
		"parameters":  map[string]any{"to": "team"},
	}, Identity{UserID: "u1"})

	if res.IsError {
		t.Fatalf("IsError = true, want success: %s", res.Text())
	}
	if res.Text() != "email queued" {
		t.Fatalf("payload = %q", res.Text())
	}
}

func TestBackendActionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewBackendActionTool(srv.URL, "key-1", time.Second, zerolog.Nop())
	res := tool.Invoke(context.Background(), map[string]any{
		"action_type": "send_email",
		"parameters":  map[string]any{},
	}, Identity{UserID: "u1"})

	if !res.IsError {
		t.Fatalf("IsError = false, want error result for HTTP 500")
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(res.Text()), &parsed); err != nil {
		t.Fatalf("error payload is not JSON: %q", res.Text())
	}
	if parsed["error"] == "" {
		t.Fatalf("error payload missing error field: %q", res.Text())
	}
	if !strings.Contains(parsed["error"], "500") {
		t.Fatalf("error = %q, want status mentioned", parsed["error"])
	}
}

func TestBackendActionUnconfigured(t *testing.T) {
	tool := NewBackendActionTool("", "", time.Second, zerolog.Nop())
	res := tool.Invoke(context.Background(), map[string]any{"action_type": "send_email"}, Identity{UserID: "u1"})
	if !res.IsError || !strings.Contains(res.Text(), "not configured") {
		t.Fatalf("payload = %q, want not-configured error", res.Text())
	}
}

func TestBackendActionMissingIdentity(t *testing.T) {
	tool := NewBackendActionTool("http://example.invalid", "key", time.Second, zerolog.Nop())
	res := tool.Invoke(context.Background(), map[string]any{"action_type": "send_email"}, Identity{})
	if !res.IsError || !strings.Contains(res.Text(), "identity") {
		t.Fatalf("payload = %q, want identity error", res.Text())
	}
}

func TestBackendActionMissingActionType(t *testing.T) {
	tool := NewBackendActionTool("http://example.invalid", "key", time.Second, zerolog.Nop())
	res := tool.Invoke(context.Background(), map[string]any{}, Identity{UserID: "u1"})
	if !res.IsError || !strings.Contains(res.Text(), "action_type") {
		t.Fatalf("payload = %q, want action_type error", res.Text())
	}
}

func TestBackendActionBlockedByPolicy(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	tool := NewBackendActionTool(srv.URL, "key-1", time.Second, zerolog.Nop())
	res := tool.Invoke(context.Background(), map[string]any{"action_type": "export_secrets"}, Identity{UserID: "u1"})
	if !res.IsError || !strings.Contains(res.Text(), "refused") {
		t.Fatalf("payload = %q, want policy refusal", res.Text())
	}
	if called {
		t.Fatalf("blocked action reached the backend")
	}
}
