package realtime

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-profile-backend/internal/domain"
)

// ErrChannelClosed is returned by Send after the hub has been closed.
var ErrChannelClosed = errors.New("realtime channel closed")

// Hub is the shared broadcast channel. Open starts the fan-out loop and is
// idempotent; Close stops it and is safe to call even when Open never ran.
// Send is fire-and-forget: when the hub's inbox or a client's queue is full
// the message is dropped rather than blocking the sender.
type Hub struct {
	log zerolog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan domain.ChatMessage

	done      chan struct{}
	openOnce  sync.Once
	closeOnce sync.Once

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewHub constructs a Hub. The hub does nothing until Open is called.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log.With().Str("component", "realtime").Logger(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan domain.ChatMessage, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Open starts the fan-out loop. Calling Open on an already-open hub is a
// no-op; reopening never duplicates delivery.
func (h *Hub) Open() error {
	select {
	case <-h.done:
		return ErrChannelClosed
	default:
	}
	h.openOnce.Do(func() {
		go h.run()
	})
	return nil
}

// Close stops the loop and disconnects every client. Idempotent, and safe
// to call without a prior Open.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	return nil
}

// Send queues a chat message for broadcast. Messages are dropped when the
// hub is closed or its inbox is full.
func (h *Hub) Send(msg domain.ChatMessage) error {
	select {
	case <-h.done:
		return ErrChannelClosed
	case h.broadcast <- msg:
		return nil
	default:
		h.log.Debug().Str("sender", msg.Sender).Msg("broadcast inbox full, message dropped")
		return nil
	}
}

// Register attaches a client to the hub. The client is closed immediately
// when the hub is already shut down.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister detaches a client and closes it.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.Close()
	}
}

// ClientCount reports how many clients are currently attached.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// run is the single fan-out goroutine. All clients-map mutation happens
// here; the mutex only guards the read in ClientCount.
func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug().Str("session_id", c.SessionID).Str("user_id", c.UserID).Msg("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			c.Close()
			h.log.Debug().Str("session_id", c.SessionID).Msg("client disconnected")

		case msg := <-h.broadcast:
			h.fanout(msg)

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// fanout delivers msg to every client queue, dropping for slow consumers so
// one stalled connection can never stall the rest.
func (h *Hub) fanout(msg domain.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.Send <- msg:
		default:
			h.log.Debug().Str("session_id", c.SessionID).Msg("client queue full, message dropped")
		}
	}
}
