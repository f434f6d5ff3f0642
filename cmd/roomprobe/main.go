// roomprobe is a smoke-test harness for a running agent worker. It hosts a
// scripted websocket room, dispatches a session against it, and prints every
// data message the agent publishes back.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/optiflow/jarvis/internal/protocol"
	"github.com/optiflow/jarvis/internal/session"
)

type options struct {
	agentURL   string
	listenAddr string
	userID     string
	roomID     string
	utterances []string
	toolName   string
	toolParams string
	turnDelay  time.Duration
	wait       time.Duration
}

func parseFlags() options {
	var opts options
	var texts string
	flag.StringVar(&opts.agentURL, "agent", "http://127.0.0.1:8080", "agent worker base URL")
	flag.StringVar(&opts.listenAddr, "listen", "127.0.0.1:0", "address for the scripted room server")
	flag.StringVar(&opts.userID, "user", "probe-user", "user id for the dispatched session")
	flag.StringVar(&opts.roomID, "room", "probe-room", "room id for the dispatched session")
	flag.StringVar(&texts, "say", "hello agent|what can you do", "pipe-separated user transcripts to script")
	flag.StringVar(&opts.toolName, "tool", "", "optional tool to request after the transcripts")
	flag.StringVar(&opts.toolParams, "tool-params", "{}", "JSON parameters for -tool")
	flag.DurationVar(&opts.turnDelay, "turn-delay", 300*time.Millisecond, "delay between scripted events")
	flag.DurationVar(&opts.wait, "wait", 15*time.Second, "how long to wait for the session to finish")
	flag.Parse()

	for _, t := range strings.Split(texts, "|") {
		if s := strings.TrimSpace(t); s != "" {
			opts.utterances = append(opts.utterances, s)
		}
	}
	return opts
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "roomprobe: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ln, err := net.Listen("tcp", opts.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			done <- fmt.Errorf("upgrade: %w", err)
			return
		}
		done <- scriptRoom(conn, opts)
	})
	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(ln) }()
	defer server.Close()

	roomURL := fmt.Sprintf("ws://%s/ws", ln.Addr().String())
	resp, err := dispatch(opts, roomURL)
	if err != nil {
		return err
	}
	fmt.Printf("dispatched session %s (user=%s room=%s)\n", resp.SessionID, resp.UserID, resp.RoomID)

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(opts.wait):
		return fmt.Errorf("agent never connected to the scripted room within %s", opts.wait)
	}

	return reportSession(opts, resp.SessionID)
}

func dispatch(opts options, roomURL string) (session.DispatchResponse, error) {
	body, _ := json.Marshal(session.DispatchRequest{
		RoomURL:   roomURL,
		RoomToken: "probe-token",
		RoomID:    opts.roomID,
		UserID:    opts.userID,
	})
	httpResp, err := http.Post(
		strings.TrimRight(opts.agentURL, "/")+"/v1/agent/dispatch",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return session.DispatchResponse{}, fmt.Errorf("dispatch: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusAccepted {
		return session.DispatchResponse{}, fmt.Errorf("dispatch status %d", httpResp.StatusCode)
	}
	var resp session.DispatchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return session.DispatchResponse{}, fmt.Errorf("decode dispatch response: %w", err)
	}
	return resp, nil
}

// scriptRoom plays the scripted events to the connected agent and echoes
// everything the agent publishes until the transcript script runs out.
func scriptRoom(conn *websocket.Conn, opts options) error {
	defer conn.Close()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Printf("agent published: %s\n", bytes.TrimSpace(raw))
		}
	}()

	send := func(evt protocol.SessionEvent) error {
		raw, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, raw)
	}

	for _, text := range opts.utterances {
		time.Sleep(opts.turnDelay)
		if err := send(protocol.SessionEvent{Type: protocol.EventTranscript, Text: text}); err != nil {
			return fmt.Errorf("send transcript: %w", err)
		}
	}

	if opts.toolName != "" {
		var params map[string]any
		if err := json.Unmarshal([]byte(opts.toolParams), &params); err != nil {
			return fmt.Errorf("parse -tool-params: %w", err)
		}
		time.Sleep(opts.turnDelay)
		err := send(protocol.SessionEvent{
			Type: protocol.EventToolCall,
			Tool: &protocol.ToolCallEvent{CallID: "probe-1", Name: opts.toolName, Parameters: params},
		})
		if err != nil {
			return fmt.Errorf("send tool call: %w", err)
		}
	}

	// Let the agent finish publishing before the room closes.
	time.Sleep(opts.turnDelay)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case <-printed:
	case <-time.After(5 * time.Second):
	}
	return nil
}

func reportSession(opts options, sessionID string) error {
	httpResp, err := http.Get(strings.TrimRight(opts.agentURL, "/") + "/v1/agent/sessions/" + sessionID)
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}
	defer httpResp.Body.Close()
	var sess session.Session
	if err := json.NewDecoder(httpResp.Body).Decode(&sess); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	fmt.Printf("session %s state=%s reason=%s\n", sess.ID, sess.State, sess.EndReason)
	return nil
}
