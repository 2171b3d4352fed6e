package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/telemetry"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// DefaultQueueSize is the number of updates buffered per client.
	DefaultQueueSize = 32
)

// Hub fans telemetry updates out to WebSocket observers. Each client has a
// bounded queue; a client whose queue is full is disconnected rather than
// slowing down the link.
type Hub struct {
	upgrader  websocket.Upgrader
	queueSize int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// NewHub creates a hub with queueSize updates buffered per client.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		queueSize: queueSize,
		clients:   make(map[*client]struct{}),
	}
}

// Broadcast queues u for every connected client. It never blocks. It has
// the telemetry.Publisher signature so a link session can feed it directly.
func (h *Hub) Broadcast(u telemetry.Update) {
	data, err := json.Marshal(u)
	if err != nil {
		logging.Error("Failed to encode update", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logging.Warn("Observer too slow, disconnecting",
				zap.String("remote_addr", c.remote),
				zap.Int("queue_size", h.queueSize),
			)
			h.dropLocked(c)
		}
	}
}

// Clients returns the number of connected observers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// ServeWS upgrades the request and registers the client. initial, when
// non-nil, is queued before any broadcast so the observer starts with the
// current state.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial *telemetry.Update) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.queueSize),
		remote: r.RemoteAddr,
	}

	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			c.send <- data
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logging.LogConnection(c.remote, "observer_connected")

	go c.writePump()
	go c.readPump()
}

// dropLocked removes c and closes its queue. The caller holds h.mu.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// readPump discards inbound messages and detects disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.drop(c)
		_ = c.conn.Close()
		logging.LogConnection(c.remote, "observer_disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		logging.LogWebSocketMessage(c.remote, "received", msgType, data)
	}
}

// writePump sends queued updates and keepalive pings until the queue is
// closed or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
