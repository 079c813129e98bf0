package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/uprename/pkg/upload"
)

// Event is one processed batch as sent to feed clients.
type Event struct {
	Time  time.Time      `json:"time"`
	Route string         `json:"route,omitempty"`
	Batch upload.Summary `json:"batch"`
}

// Hub broadcasts batch events to WebSocket clients.
//
// New clients first receive the most recent events, oldest first, then every
// event published after they connected. A client that cannot keep up is
// disconnected rather than slowing down request processing.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	history []Event
	next    int
	full    bool
	closed  bool

	upgrader     websocket.Upgrader
	logger       *slog.Logger
	writeTimeout time.Duration
	sendBuffer   int
	onConnect    func()
	onDisconnect func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// Option configures a Hub.
type Option func(*Hub)

// WithHistory sets how many recent events new clients receive. Default: 50.
func WithHistory(n int) Option {
	return func(h *Hub) {
		if n < 0 {
			n = 0
		}
		h.history = make([]Event, n)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin sets the origin check used during the upgrade.
// Default: same-origin only, as in websocket.Upgrader.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithConnectHooks registers functions called when a client connects and
// disconnects.
func WithConnectHooks(onConnect, onDisconnect func()) Option {
	return func(h *Hub) {
		h.onConnect = onConnect
		h.onDisconnect = onDisconnect
	}
}

// NewHub creates a Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		history: make([]Event, 50),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
		sendBuffer:   16,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish records ev in the history and sends it to every client.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("feed encode error", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if len(h.history) > 0 {
		h.history[h.next] = ev
		h.next = (h.next + 1) % len(h.history)
		if h.next == 0 {
			h.full = true
		}
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("feed client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			h.dropLocked(c)
		}
	}
}

// Recent returns the retained events, oldest first.
func (h *Hub) Recent() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.recentLocked()
}

func (h *Hub) recentLocked() []Event {
	if !h.full {
		return append([]Event(nil), h.history[:h.next]...)
	}
	out := make([]Event, 0, len(h.history))
	out = append(out, h.history[h.next:]...)
	return append(out, h.history[:h.next]...)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket and streams events until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	// History is queued under the lock so no event is missed or repeated.
	for _, ev := range h.recentLocked() {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
	h.clients[c] = struct{}{}
	if h.onConnect != nil {
		h.onConnect()
	}
	h.mu.Unlock()

	h.logger.Debug("feed client connected", "remote", conn.RemoteAddr().String())

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages and returns when the connection closes.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.logger.Warn("feed read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// dropLocked unregisters c and stops its writer. h.mu must be held.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.once.Do(func() { close(c.send) })
	if h.onDisconnect != nil {
		h.onDisconnect()
	}
}

// Close disconnects every client. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// Middleware returns processor middleware that publishes every batch,
// tagged with route.
func (h *Hub) Middleware(route string) upload.Middleware {
	return upload.MiddlewareFunc(func(ctx context.Context, body []byte, next func(context.Context) *upload.Batch) *upload.Batch {
		batch := next(ctx)
		h.Publish(Event{
			Time:  time.Now().UTC(),
			Route: route,
			Batch: upload.Summarize(batch),
		})
		return batch
	})
}
