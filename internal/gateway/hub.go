package gateway

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// clientSendBuffer is the per-client outbound queue. Sized to hold a full
// replay backlog plus live traffic.
const clientSendBuffer = 256

// Hub tracks connected websocket clients and fans broadcast frames out to
// each of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	replay  *ReplayBuffer
}

func NewHub(replaySize int) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		replay:  NewReplayBuffer(replaySize),
	}
}

// Register adopts an upgraded connection and starts its pumps. The replay
// backlog is queued before the client joins the broadcast set, so it sees
// prior signals before any live ones.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, clientSendBuffer)}

	backlog := h.replay.Snapshot()
	for _, frame := range backlog {
		select {
		case c.send <- frame:
		default:
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()

	log.Printf("[gateway] client connected (replayed %d frames, %d connected)", len(backlog), n)
	return c
}

// remove detaches a client and closes its send channel, which makes its
// writePump exit.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Printf("[gateway] client disconnected (%d connected)", n)
	}
}

// Broadcast records the frame for replay and queues it to every client.
// A slow client loses frames rather than blocking the caller.
func (h *Hub) Broadcast(frame []byte) {
	h.replay.Push(frame)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			log.Printf("[gateway] client send buffer full, dropping frame")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
