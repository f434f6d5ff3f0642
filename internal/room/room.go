package room

import (
	"context"

	"github.com/optiflow/jarvis/internal/protocol"
)

// Handle is one connected room. It is exclusively owned by a single session
// for its lifetime.
type Handle interface {
	// PublishData sends a JSON data message to the client.
	PublishData(ctx context.Context, payload any) error
	// Disconnect releases the connection. Safe to call more than once.
	Disconnect() error
}

// Connector opens room connections. The returned channel delivers the
// session's ordered event stream and is closed when the stream ends.
type Connector interface {
	Connect(ctx context.Context, url, token string) (Handle, <-chan protocol.SessionEvent, error)
}
