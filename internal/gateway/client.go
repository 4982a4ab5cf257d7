package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames. Clients only ever send small
	// ping probes.
	maxMessageSize = 512
)

// Client is one connected websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// pingProbe is the only inbound message the gateway understands:
// {"ping": 17} is answered with {"type":"pong","ping":17,"server_ts":ms}
// so browser clients can measure round-trip latency.
type pingProbe struct {
	Ping *int64 `json:"ping"`
}

// readPump drains inbound frames, keeps the read deadline fresh via the
// pong handler, and answers application-level ping probes.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[gateway] read error: %v", err)
			}
			return
		}

		var probe pingProbe
		if err := json.Unmarshal(msg, &probe); err != nil || probe.Ping == nil {
			continue
		}
		reply, err := json.Marshal(map[string]interface{}{
			"type":      "pong",
			"ping":      *probe.Ping,
			"server_ts": time.Now().UnixMilli(),
		})
		if err != nil {
			continue
		}
		select {
		case c.send <- reply:
		default:
		}
	}
}

// writePump flushes queued frames to the peer and keeps the connection
// alive with periodic protocol pings. Queued frames are coalesced into a
// single websocket message with '\n' separators.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
