package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-profile-backend/internal/config"
	"github.com/tbourn/go-profile-backend/internal/domain"
)

// Handler upgrades HTTP requests to websocket sessions attached to a Hub.
type Handler struct {
	hub      *Hub
	cfg      config.RealtimeConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket endpoint for the given hub. Origins are
// checked against the CORS allowlist; an empty allowlist accepts any origin,
// matching the router's CORS posture.
func NewHandler(hub *Hub, cfg config.RealtimeConfig, allowedOrigins []string, log zerolog.Logger) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		hub: hub,
		cfg: cfg,
		log: log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Serve is the Gin handler for GET /ws. Each connection gets a Client with
// a bounded queue, a read pump that re-broadcasts inbound chat messages, and
// a write pump with ping keepalive.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID := c.GetHeader("X-User-ID")
	client := NewClient(userID, uuid.NewString(), h.cfg.SendQueueSize)
	h.hub.Register(client)

	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

// readPump drains inbound frames. Well-formed chat messages are fanned back
// out through the hub; anything else is ignored. The pump unregisters the
// client when the connection drops.
func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	deadline := h.cfg.PingInterval + h.cfg.WriteTimeout
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("session_id", client.SessionID).Msg("read pump closed")
			}
			return
		}
		var msg domain.ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Sender == "" {
			continue
		}
		_ = h.hub.Send(msg)
	}
}

// writePump drains the client queue onto the wire and keeps the connection
// alive with periodic pings.
func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
