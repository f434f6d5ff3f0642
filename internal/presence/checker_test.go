package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPCheckerParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/presence/check" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req presenceCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.UserID != "u1" {
			t.Errorf("UserID = %q, want %q", req.UserID, "u1")
		}
		_ = json.NewEncoder(w).Encode(presenceCheckResponse{Inactive: true})
	}))
	defer srv.Close()

	c := NewHTTPChecker(srv.URL, time.Second)
	inactive, err := c.CheckPresence(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CheckPresence() error = %v", err)
	}
	if !inactive {
		t.Fatalf("inactive = false, want true")
	}
}

func TestHTTPCheckerRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPChecker(srv.URL, time.Second)
	if _, err := c.CheckPresence(context.Background(), "u1"); err == nil {
		t.Fatalf("CheckPresence() error = nil, want status error")
	}
}
