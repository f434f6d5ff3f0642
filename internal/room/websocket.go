package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/protocol"
	"github.com/optiflow/jarvis/internal/reliability"
)

const (
	dialAttempts    = 3
	dialBackoffBase = 250 * time.Millisecond
	dialBackoffCap  = 2 * time.Second
	writeTimeout    = 10 * time.Second
)

// WSConnector joins rooms over the websocket transport protocol.
type WSConnector struct {
	logger zerolog.Logger
}

func NewWSConnector(logger zerolog.Logger) *WSConnector {
	return &WSConnector{logger: logger}
}

func (c *WSConnector) Connect(ctx context.Context, url, token string) (Handle, <-chan protocol.SessionEvent, error) {
	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	var (
		conn    *websocket.Conn
		lastErr error
	)
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			backoff := reliability.ExponentialBackoff(attempt-1, dialBackoffBase, dialBackoffCap)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		var err error
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, url, headers)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if !reliability.IsRetryableError(err) {
			break
		}
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("room dial failed, retrying")
	}
	if lastErr != nil {
		return nil, nil, fmt.Errorf("dial room websocket: %w", lastErr)
	}

	events := make(chan protocol.SessionEvent, 64)
	h := &wsHandle{conn: conn, events: events, logger: c.logger}
	go h.readLoop()
	return h, events, nil
}

type wsHandle struct {
	conn      *websocket.Conn
	events    chan protocol.SessionEvent
	logger    zerolog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func (h *wsHandle) readLoop() {
	defer close(h.events)
	for {
		_, raw, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			h.writeMu.Lock()
			wasClosed := h.closed
			h.writeMu.Unlock()
			if wasClosed {
				return
			}
			// Surface transport failures as an error event so the session
			// terminates through its normal path.
			h.events <- protocol.SessionEvent{
				Type:   protocol.EventError,
				Code:   "transport_read_failed",
				Detail: err.Error(),
			}
			return
		}

		evt, err := protocol.ParseSessionEvent(raw)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedEvent) {
				h.logger.Warn().Str("raw", string(raw)).Msg("dropping unsupported session event")
				continue
			}
			h.logger.Warn().Err(err).Msg("dropping malformed session event")
			continue
		}
		h.events <- evt
	}
}

func (h *wsHandle) PublishData(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal data message: %w", err)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if h.closed {
		return errors.New("room handle closed")
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = h.conn.SetWriteDeadline(deadline)
	if err := h.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("publish data: %w", err)
	}
	return nil
}

func (h *wsHandle) Disconnect() error {
	var err error
	h.closeOnce.Do(func() {
		h.writeMu.Lock()
		h.closed = true
		deadline := time.Now().Add(time.Second)
		_ = h.conn.SetWriteDeadline(deadline)
		_ = h.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "agent leaving"),
		)
		h.writeMu.Unlock()
		err = h.conn.Close()
	})
	return err
}
