package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice agent worker.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	RoomProvider string
	RoomURL      string
	RoomAPIKey   string

	SpeechProvider string
	SpeechURL      string
	SpeechAPIKey   string
	SpeechVoiceID  string

	BackendURL    string
	BackendAPIKey string

	WebhookURL     string
	WebhookTimeout time.Duration

	PresencePollInterval time.Duration
	InactivityLimit      time.Duration
	ToolTimeout          time.Duration

	DatabaseURL string

	MemoryContextLimit int
	SystemPrompt       string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "jarvis"),
		RoomProvider:         envOrDefault("ROOM_PROVIDER", "auto"),
		RoomURL:              envTrimmed("ROOM_URL"),
		RoomAPIKey:           envTrimmed("ROOM_API_KEY"),
		SpeechProvider:       envOrDefault("SPEECH_PROVIDER", "auto"),
		SpeechURL:            envTrimmed("SPEECH_URL"),
		SpeechAPIKey:         envTrimmed("SPEECH_API_KEY"),
		SpeechVoiceID:        envOrDefault("SPEECH_VOICE_ID", "alloy"),
		BackendURL:           envTrimmed("BACKEND_URL"),
		BackendAPIKey:        envTrimmed("BACKEND_API_KEY"),
		WebhookURL:           envTrimmed("AGENT_EVENT_WEBHOOK_URL"),
		DatabaseURL:          envTrimmed("DATABASE_URL"),
		SystemPrompt:         envTrimmed("AGENT_SYSTEM_PROMPT"),
		ShutdownTimeout:      15 * time.Second,
		WebhookTimeout:       5 * time.Second,
		PresencePollInterval: 30 * time.Second,
		InactivityLimit:      10 * time.Minute,
		ToolTimeout:          30 * time.Second,
		MemoryContextLimit:   8,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WebhookTimeout, err = durationFromEnv("AGENT_EVENT_WEBHOOK_TIMEOUT", cfg.WebhookTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PresencePollInterval, err = durationFromEnv("PRESENCE_POLL_INTERVAL", cfg.PresencePollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.InactivityLimit, err = durationFromEnv("PRESENCE_INACTIVITY_LIMIT", cfg.InactivityLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.ToolTimeout, err = durationFromEnv("TOOL_TIMEOUT", cfg.ToolTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryContextLimit, err = intFromEnv("MEMORY_CONTEXT_LIMIT", cfg.MemoryContextLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.PresencePollInterval < time.Second {
		return Config{}, fmt.Errorf("PRESENCE_POLL_INTERVAL must be at least 1s")
	}
	if cfg.InactivityLimit < cfg.PresencePollInterval {
		return Config{}, fmt.Errorf("PRESENCE_INACTIVITY_LIMIT must be at least the poll interval")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("TOOL_TIMEOUT must be positive")
	}
	if cfg.MemoryContextLimit <= 0 {
		return Config{}, fmt.Errorf("MEMORY_CONTEXT_LIMIT must be positive")
	}

	return cfg, nil
}

// KnowledgeConfigured reports whether the knowledge search backend is usable.
// When false, the knowledge tool degrades to simulated results.
func (c Config) KnowledgeConfigured() bool {
	return c.BackendURL != "" && c.BackendAPIKey != ""
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
