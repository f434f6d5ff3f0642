package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Event names delivered to the lifecycle webhook.
const (
	EventAgentLeave = "agent_leave"
	EventAgentJoin  = "agent_join"
)

// Payload is the webhook body for one lifecycle event.
type Payload struct {
	EventType string `json:"event_type"`
	UserID    string `json:"user_id"`
	RoomID    string `json:"room_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Notifier delivers lifecycle events to a configured webhook. Delivery is
// best-effort telemetry: failures are logged and swallowed, and an empty
// webhook URL turns every call into a no-op.
type Notifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

func NewNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		url:    strings.TrimSpace(webhookURL),
		client: &http.Client{Timeout: timeout},
		logger: logger,
		now:    time.Now,
	}
}

// Notify posts one event. It never returns an error to the caller.
func (n *Notifier) Notify(ctx context.Context, eventType, userID, roomID, reason string) {
	if n == nil || n.url == "" {
		return
	}

	payload := Payload{
		EventType: eventType,
		UserID:    userID,
		RoomID:    roomID,
		Reason:    reason,
		Timestamp: n.now().Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Str("event", eventType).Msg("webhook payload marshal failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error().Err(err).Str("event", eventType).Msg("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Str("event", eventType).Msg("webhook delivery failed")
		return
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		n.logger.Error().
			Int("status", res.StatusCode).
			Str("event", eventType).
			Str("detail", strings.TrimSpace(string(detail))).
			Msg("webhook rejected event")
	}
}
