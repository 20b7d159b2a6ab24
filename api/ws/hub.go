package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 10 * time.Second

// clientCountMessage is the server->client broadcast sent after every
// registry mutation.
type clientCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// client is one connected websocket peer. Writes are serialized with a
// mutex because broadcasts and per-connection replies share the socket.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	//nolint:errcheck // deadline errors surface on the write itself
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Hub tracks connected websocket peers and fans the active-connection count
// out to all of them. It implements presence.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

func (h *Hub) add(connID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connID] = c
}

func (h *Hub) remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
}

// Len returns the number of connected peers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastClientCount sends the new active count to every connected peer.
// A failed write only logs; the read loop notices the broken socket and
// tears the connection down through the normal disconnect path.
func (h *Hub) BroadcastClientCount(count int) {
	msg := clientCountMessage{Type: "clientCount", Count: count}

	h.mu.RLock()
	peers := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		peers[id] = c
	}
	h.mu.RUnlock()

	for id, c := range peers {
		if err := c.writeJSON(msg); err != nil {
			log.Debug().Err(err).Str("conn_id", id).Msg("Failed to broadcast client count")
		}
	}
}
