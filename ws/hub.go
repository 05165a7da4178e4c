package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mklimuk/sensord"
)

const writeWait = time.Second

// Hub broadcasts sensor events as JSON text frames to every connected
// websocket client. Slow clients lose samples instead of stalling the
// sampling loop.
type Hub struct {
	mx       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	config   HubOpts
}

type HubOpts struct {
	// SendBuffer is the number of pending frames kept per client.
	SendBuffer int
	Logger     *slog.Logger
}

type HubOpt func(*HubOpts)

func WithSendBuffer(n int) HubOpt {
	return func(o *HubOpts) {
		o.SendBuffer = n
	}
}

func WithLogger(logger *slog.Logger) HubOpt {
	return func(o *HubOpts) {
		o.Logger = logger
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(opts ...HubOpt) *Hub {
	config := HubOpts{SendBuffer: 16, Logger: slog.Default()}
	for _, opt := range opts {
		opt(&config)
	}
	return &Hub{
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config: config,
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.config.Logger.Warn("websocket upgrade error", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.config.SendBuffer)}
	h.mx.Lock()
	h.clients[c] = struct{}{}
	h.mx.Unlock()
	h.config.Logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	// clients only listen; reading detects the close handshake
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.config.Logger.Debug("websocket read error", "remote", r.RemoteAddr, "error", err)
			}
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.config.Logger.Debug("websocket write error", "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) remove(c *client) {
	h.mx.Lock()
	defer h.mx.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish queues ev for every client.
func (h *Hub) Publish(ctx context.Context, ev *sensord.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}
	h.mx.Lock()
	defer h.mx.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.config.Logger.Debug("websocket client too slow, sample dropped")
		}
	}
	return nil
}

func (h *Hub) Clients() int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mx.Lock()
	defer h.mx.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
