package room

import (
	"context"
	"sync"

	"github.com/optiflow/jarvis/internal/protocol"
)

// MockConnector is a local fallback used when no room endpoint is configured.
// Tests also drive it directly to script event streams.
type MockConnector struct {
	mu      sync.Mutex
	handles []*MockHandle
}

func NewMockConnector() *MockConnector { return &MockConnector{} }

func (c *MockConnector) Connect(_ context.Context, _, _ string) (Handle, <-chan protocol.SessionEvent, error) {
	h := NewMockHandle()
	c.mu.Lock()
	c.handles = append(c.handles, h)
	c.mu.Unlock()
	return h, h.Events, nil
}

// Handles returns every handle this connector produced, in connect order.
func (c *MockConnector) Handles() []*MockHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*MockHandle, len(c.handles))
	copy(out, c.handles)
	return out
}

// MockHandle records published data messages and exposes a scriptable event
// channel.
type MockHandle struct {
	Events chan protocol.SessionEvent

	mu              sync.Mutex
	published       []any
	disconnects     int
	closeEventsOnce sync.Once
}

func NewMockHandle() *MockHandle {
	return &MockHandle{Events: make(chan protocol.SessionEvent, 64)}
}

// Deliver scripts one inbound session event.
func (h *MockHandle) Deliver(evt protocol.SessionEvent) {
	h.Events <- evt
}

// EndStream closes the event channel, simulating a normal stream end.
func (h *MockHandle) EndStream() {
	h.closeEventsOnce.Do(func() { close(h.Events) })
}

func (h *MockHandle) PublishData(_ context.Context, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, payload)
	return nil
}

func (h *MockHandle) Disconnect() error {
	h.mu.Lock()
	h.disconnects++
	h.mu.Unlock()
	h.EndStream()
	return nil
}

// Published returns data messages in publish order.
func (h *MockHandle) Published() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]any, len(h.published))
	copy(out, h.published)
	return out
}

// DisconnectCount reports how many times Disconnect was called.
func (h *MockHandle) DisconnectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnects
}
