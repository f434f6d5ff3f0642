package room

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/protocol"
)

func wsTestServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSConnectorDeliversEvents(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		frames := []string{
			`{"type":"transcript","text":"hello"}`,
			`{"type":"unsupported_garbage"}`,
			`{"type":"agent_speaking_started"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		// Give the client a moment to drain before the server socket drops.
		time.Sleep(50 * time.Millisecond)
	})
	defer srv.Close()

	c := NewWSConnector(zerolog.Nop())
	handle, events, err := c.Connect(context.Background(), wsURL(srv), "tok-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer handle.Disconnect()

	var got []protocol.SessionEvent
	for evt := range events {
		got = append(got, evt)
	}
	if len(got) != 2 {
		t.Fatalf("len(events) = %d, want 2 (unsupported frame dropped): %+v", len(got), got)
	}
	if got[0].Type != protocol.EventTranscript || got[0].Text != "hello" {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[1].Type != protocol.EventAgentSpeakingStarted {
		t.Fatalf("second event = %+v", got[1])
	}
}

func TestWSConnectorPublishData(t *testing.T) {
	received := make(chan string, 1)
	srv := wsTestServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(raw)
		// Hold the connection until the client disconnects.
		_, _, _ = conn.ReadMessage()
	})
	defer srv.Close()

	c := NewWSConnector(zerolog.Nop())
	handle, _, err := c.Connect(context.Background(), wsURL(srv), "")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer handle.Disconnect()

	msg := protocol.NewLeavingStatus("user_inactive")
	if err := handle.PublishData(context.Background(), msg); err != nil {
		t.Fatalf("PublishData() error = %v", err)
	}

	select {
	case raw := <-received:
		if !strings.Contains(raw, `"leaving_room"`) {
			t.Fatalf("published frame = %q", raw)
		}
	case <-time.After(time.Second):
		t.Fatalf("server never received the data message")
	}
}

func TestWSConnectorAbnormalCloseYieldsErrorEvent(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn, _ *http.Request) {
		// Drop the TCP connection without a close handshake.
		_ = conn.UnderlyingConn().Close()
	})
	defer srv.Close()

	c := NewWSConnector(zerolog.Nop())
	handle, events, err := c.Connect(context.Background(), wsURL(srv), "")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer handle.Disconnect()

	var last protocol.SessionEvent
	var n int
	for evt := range events {
		last = evt
		n++
	}
	if n != 1 || last.Type != protocol.EventError {
		t.Fatalf("events = %d, last = %+v; want single transport error event", n, last)
	}
	if last.Code != "transport_read_failed" {
		t.Fatalf("Code = %q, want transport_read_failed", last.Code)
	}
}

func TestWSConnectorPublishAfterDisconnect(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _, _ = conn.ReadMessage()
	})
	defer srv.Close()

	c := NewWSConnector(zerolog.Nop())
	handle, _, err := c.Connect(context.Background(), wsURL(srv), "")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := handle.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := handle.PublishData(context.Background(), map[string]string{"type": "x"}); err == nil {
		t.Fatalf("PublishData() after disconnect should fail")
	}
	// Second disconnect must be a no-op.
	if err := handle.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}
}
