package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPSynthesizerPostsUtterance(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech/synthesize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-1" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(HTTPSynthesizerConfig{BaseURL: srv.URL, APIKey: "sk-1", VoiceID: "nova"})
	if err := s.Synthesize(context.Background(), "Hello there."); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got.Text != "Hello there." || got.VoiceID != "nova" {
		t.Fatalf("request = %+v", got)
	}
}

func TestHTTPSynthesizerRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(HTTPSynthesizerConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err := s.Synthesize(context.Background(), "retry me"); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPSynthesizerDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(HTTPSynthesizerConfig{BaseURL: srv.URL})
	if err := s.Synthesize(context.Background(), "bad"); err == nil {
		t.Fatalf("Synthesize() should fail on 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 for non-retryable status", calls.Load())
	}
}

func TestHTTPSynthesizerSkipsEmptyText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(HTTPSynthesizerConfig{BaseURL: srv.URL})
	if err := s.Synthesize(context.Background(), "   "); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("backend called for empty text")
	}
}
