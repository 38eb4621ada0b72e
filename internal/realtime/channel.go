package realtime

import (
	"sync"

	"github.com/tbourn/go-profile-backend/internal/domain"
)

// Channel is one session's handle on the shared Hub. Opening a Channel
// starts the hub if it is not running yet; closing a Channel detaches only
// that session, while the hub keeps serving other sessions until its own
// Close during shutdown.
type Channel struct {
	hub *Hub

	mu     sync.Mutex
	closed bool
}

// NewChannel returns a fresh per-session handle on the hub.
func (h *Hub) NewChannel() *Channel {
	return &Channel{hub: h}
}

// Open makes the channel usable. Idempotent.
func (ch *Channel) Open() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return ErrChannelClosed
	}
	return ch.hub.Open()
}

// Close detaches this session from the hub. Idempotent, and safe without a
// prior Open.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	ch.closed = true
	ch.mu.Unlock()
	return nil
}

// Send broadcasts through the hub unless this channel has been closed.
func (ch *Channel) Send(msg domain.ChatMessage) error {
	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}
	return ch.hub.Send(msg)
}
