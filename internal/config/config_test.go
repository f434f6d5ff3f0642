package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.PresencePollInterval != 30*time.Second {
		t.Fatalf("PresencePollInterval = %v, want 30s", cfg.PresencePollInterval)
	}
	if cfg.InactivityLimit != 10*time.Minute {
		t.Fatalf("InactivityLimit = %v, want 10m", cfg.InactivityLimit)
	}
	if cfg.ToolTimeout != 30*time.Second {
		t.Fatalf("ToolTimeout = %v, want 30s", cfg.ToolTimeout)
	}
	if cfg.KnowledgeConfigured() {
		t.Fatalf("KnowledgeConfigured() = true, want false with no backend env")
	}
}

func TestLoadUsesExplicitBackend(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("BACKEND_URL", "http://localhost:7777")
	t.Setenv("BACKEND_API_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != "http://localhost:7777" {
		t.Fatalf("BackendURL = %q, want explicit value", cfg.BackendURL)
	}
	if !cfg.KnowledgeConfigured() {
		t.Fatalf("KnowledgeConfigured() = false, want true")
	}
}

func TestLoadRejectsInactivityBelowPollInterval(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PRESENCE_POLL_INTERVAL", "30s")
	t.Setenv("PRESENCE_INACTIVITY_LIMIT", "5s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want inactivity limit validation error")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("TOOL_TIMEOUT", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"ROOM_PROVIDER",
		"ROOM_URL",
		"ROOM_API_KEY",
		"SPEECH_PROVIDER",
		"SPEECH_URL",
		"SPEECH_API_KEY",
		"SPEECH_VOICE_ID",
		"BACKEND_URL",
		"BACKEND_API_KEY",
		"AGENT_EVENT_WEBHOOK_URL",
		"AGENT_EVENT_WEBHOOK_TIMEOUT",
		"PRESENCE_POLL_INTERVAL",
		"PRESENCE_INACTIVITY_LIMIT",
		"TOOL_TIMEOUT",
		"DATABASE_URL",
		"MEMORY_CONTEXT_LIMIT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
