package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait    = 5 * time.Second
	readWait     = 60 * time.Second
	pingInterval = readWait * 9 / 10
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub is a websocket broadcaster. Every connected client receives every
// published event.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*client

	// A client that answers neither pings nor anything else within readWait
	// is dropped. Listen-only clients stay alive by answering pings.
	readWait     time.Duration
	pingInterval time.Duration
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024 * 16,
		},
		clients:      make(map[*websocket.Conn]*client),
		readWait:     readWait,
		pingInterval: pingInterval,
	}
}

// Handle upgrades the request and keeps the subscriber registered until the
// connection closes.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[conn] = c
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Str("remote", r.RemoteAddr).Int("subscribers", n).Msg("ws subscriber connected")

	defer h.remove(conn)

	done := make(chan struct{})
	defer close(done)
	go h.keepalive(c, done)

	_ = conn.SetReadDeadline(time.Now().Add(h.readWait))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(h.readWait)); return nil })

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("ws read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readWait))
		if mt != websocket.TextMessage {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		// keepalive from client
		if msg["type"] == "ping" {
			b, _ := json.Marshal(map[string]any{"type": "pong", "ts": msg["ts"]})
			_ = c.write(websocket.TextMessage, b)
		}
	}
}

// keepalive pings c until done is closed or a ping cannot be written.
func (h *Hub) keepalive(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Msg("ws ping failed")
				return
			}
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// Subscribers is the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish writes ev to every subscriber. Clients that fail the write are
// disconnected; the failure is not returned.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, b); err != nil {
			log.Warn().Err(err).Msg("ws write failed, dropping subscriber")
			h.remove(c.conn)
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*websocket.Conn]*client)
	h.mu.Unlock()
	for conn, c := range clients {
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		_ = conn.Close()
	}
}
