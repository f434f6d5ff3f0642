package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/agent"
	"github.com/optiflow/jarvis/internal/config"
	"github.com/optiflow/jarvis/internal/httpapi"
	"github.com/optiflow/jarvis/internal/memory"
	"github.com/optiflow/jarvis/internal/notify"
	"github.com/optiflow/jarvis/internal/observability"
	"github.com/optiflow/jarvis/internal/presence"
	"github.com/optiflow/jarvis/internal/room"
	"github.com/optiflow/jarvis/internal/session"
	"github.com/optiflow/jarvis/internal/speech"
	"github.com/optiflow/jarvis/internal/tools"
)

func main() {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("memory store init failed")
	}
	defer memoryStore.Close()

	registry := tools.NewRegistry(metrics, logger)
	registry.Register(tools.NewBackendActionTool(cfg.BackendURL, cfg.BackendAPIKey, cfg.ToolTimeout, logger))
	registry.Register(tools.NewKnowledgeBaseTool(cfg.BackendURL, cfg.BackendAPIKey, cfg.ToolTimeout, logger))
	logger.Info().Strs("tools", registry.Names()).Msg("tool registry built")

	connector := newRoomConnector(cfg, logger)
	synth := newSynthesizer(cfg, logger)

	var checker presence.Checker = presence.NewHTTPChecker(cfg.BackendURL, cfg.ToolTimeout)
	notifier := notify.NewNotifier(cfg.WebhookURL, cfg.WebhookTimeout, logger)

	sessions := session.NewManager()
	orchestrator := agent.NewOrchestrator(
		sessions,
		connector,
		synth,
		registry,
		checker,
		notifier,
		memoryStore,
		metrics,
		logger,
		cfg.SystemPrompt,
		cfg.PresencePollInterval,
		cfg.InactivityLimit,
		cfg.MemoryContextLimit,
	)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	api := httpapi.New(runCtx, sessions, orchestrator, metrics, logger, registry.Names())
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	// Cancel running sessions first so their teardowns publish, notify, and
	// disconnect before the HTTP listener goes away.
	runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if lv, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err == nil && lv != zerolog.NoLevel {
		level = lv
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// newRoomConnector picks the realtime transport. auto degrades to the mock
// connector when no room endpoint is configured.
func newRoomConnector(cfg config.Config, logger zerolog.Logger) room.Connector {
	mode := strings.ToLower(strings.TrimSpace(cfg.RoomProvider))
	switch mode {
	case "ws":
		logger.Info().Msg("room provider: websocket")
		return room.NewWSConnector(logger)
	case "mock":
		logger.Info().Msg("room provider: mock")
		return room.NewMockConnector()
	case "auto", "":
		if cfg.RoomURL != "" {
			logger.Info().Msg("room provider: websocket")
			return room.NewWSConnector(logger)
		}
		logger.Info().Msg("room provider: mock (no ROOM_URL configured)")
		return room.NewMockConnector()
	default:
		logger.Fatal().Str("provider", cfg.RoomProvider).Msg("invalid ROOM_PROVIDER (expected auto|ws|mock)")
		return nil
	}
}

// newSynthesizer picks the speech backend. With both a primary and the
// backend speech proxy configured, a failover pair is used.
func newSynthesizer(cfg config.Config, logger zerolog.Logger) speech.Synthesizer {
	mode := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	build := func() speech.Synthesizer {
		primary := speech.NewHTTPSynthesizer(speech.HTTPSynthesizerConfig{
			BaseURL: cfg.SpeechURL,
			APIKey:  cfg.SpeechAPIKey,
			VoiceID: cfg.SpeechVoiceID,
		})
		if cfg.BackendURL != "" {
			fallback := speech.NewHTTPSynthesizer(speech.HTTPSynthesizerConfig{
				BaseURL: cfg.BackendURL + "/api/speech",
				APIKey:  cfg.BackendAPIKey,
				VoiceID: cfg.SpeechVoiceID,
			})
			logger.Info().Msg("speech provider: http with backend failover")
			return speech.NewFailoverSynthesizer(primary, fallback)
		}
		logger.Info().Msg("speech provider: http")
		return primary
	}

	switch mode {
	case "http":
		if cfg.SpeechURL == "" {
			logger.Fatal().Msg("SPEECH_PROVIDER=http but SPEECH_URL is not set")
		}
		return build()
	case "mock":
		logger.Info().Msg("speech provider: mock")
		return speech.NewMockSynthesizer()
	case "auto", "":
		if cfg.SpeechURL != "" {
			return build()
		}
		logger.Info().Msg("speech provider: mock (no SPEECH_URL configured)")
		return speech.NewMockSynthesizer()
	default:
		logger.Fatal().Str("provider", cfg.SpeechProvider).Msg("invalid SPEECH_PROVIDER (expected auto|http|mock)")
		return nil
	}
}
