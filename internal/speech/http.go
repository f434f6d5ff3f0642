package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/optiflow/jarvis/internal/reliability"
)

const (
	synthesizeAttempts = 3
	backoffBase        = 200 * time.Millisecond
	backoffCap         = 2 * time.Second
)

type HTTPSynthesizerConfig struct {
	BaseURL string
	APIKey  string
	VoiceID string
	Timeout time.Duration
}

// HTTPSynthesizer speaks through a REST speech backend. Transient backend
// failures are retried with exponential backoff before giving up.
type HTTPSynthesizer struct {
	cfg    HTTPSynthesizerConfig
	client *http.Client
}

func NewHTTPSynthesizer(cfg HTTPSynthesizerConfig) *HTTPSynthesizer {
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "default"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	VoiceID string `json:"voiceId"`
	Text    string `json:"text"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	body, err := json.Marshal(synthesizeRequest{VoiceID: s.cfg.VoiceID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal synthesize request: %w", err)
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/speech/synthesize"
	var lastErr error
	for attempt := 0; attempt < synthesizeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(reliability.ExponentialBackoff(attempt, backoffBase, backoffCap)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build synthesize request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			if !reliability.IsRetryableError(err) {
				return fmt.Errorf("synthesize request: %w", err)
			}
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("speech backend returned status %d", resp.StatusCode)
		if !reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return lastErr
		}
	}
	return fmt.Errorf("synthesize failed after %d attempts: %w", synthesizeAttempts, lastErr)
}
