package broadcast

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/statusdeck/statusdeck/internal/pkg/ctxlog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler exposes the hub over a WebSocket endpoint.
type Handler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewHandler creates a WebSocket handler for the hub.
func NewHandler(hub *Hub, allowedOrigins []string, writeTimeout time.Duration) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if originsSet["*"] {
					return true
				}
				return originsSet[r.Header.Get("Origin")]
			},
		},
		writeTimeout: writeTimeout,
	}
}

// RegisterRoutes registers the live-update endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.Serve)
}

// Serve upgrades the connection and streams change notifications until
// the client disconnects or falls behind.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	go h.writePump(conn, sub)

	// Read loop: the client sends nothing meaningful, but reading is
	// required to process pong frames and notice disconnects.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump forwards hub events to the connection as JSON and keeps the
// connection alive with pings.
func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "resubscribe"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
