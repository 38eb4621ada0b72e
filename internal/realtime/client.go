// Package realtime implements the process-wide broadcast channel used to
// push ephemeral chat-style events to connected viewers. The Hub fans
// messages out to websocket clients on a best-effort basis: no delivery
// guarantees, no ordering across clients, no persistence. It is not a
// message broker.
package realtime

import (
	"sync"

	"github.com/tbourn/go-profile-backend/internal/domain"
)

// Client represents one connected websocket session.
//
// Send is intentionally never closed by the hub so concurrent broadcasters
// cannot panic on a closed channel; done signals the pumps to stop instead.
type Client struct {
	// SessionID identifies this connection for logging.
	SessionID string
	// UserID is the viewer identity, when known.
	UserID string
	// Send is the bounded outbound queue drained by the write pump.
	Send chan domain.ChatMessage

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(userID, sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		SessionID: sessionID,
		UserID:    userID,
		Send:      make(chan domain.ChatMessage, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close signals the client pumps to stop. It is idempotent and does not
// close Send, keeping broadcast safe under concurrency.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
