package relay

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second // Time allowed to write a message to the peer.

	// Heartbeat: ping every pingPeriod and expect traffic (a pong counts)
	// before the read deadline. The grace on top of one period means a
	// single unanswered ping kills the connection.
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + 10*time.Second

	maxMessageSize = 4096 // Maximum frame size allowed from peer.

	sendBufferSize = 256
)

// Client is the middleman between one websocket connection and the hub.
// It is bound to exactly one authenticated subject; the credential is
// verified before the upgrade, so an unauthenticated socket never reaches
// the hub at all.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound frames. Closed only by the hub run loop.
	send chan []byte

	userID   string
	username string

	// closed is owned by the hub run loop to make the send-channel close
	// idempotent across the unregister and supersede paths.
	closed bool
}

// readPump pumps frames from the websocket to the hub. Inbound events are
// forwarded one at a time in arrival order, so per-connection ordering is
// preserved. Exits on transport close, error, or heartbeat timeout, and
// always hands the connection to the hub for cleanup.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read failed", "user_id", c.userID, "error", err)
			}
			break
		}
		c.hub.inbound <- inboundFrame{client: c, data: raw}
	}
}

// writePump pumps frames from the hub to the websocket connection and owns
// the heartbeat pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

			// Drain queued frames while we hold the write deadline. Each
			// event stays in its own frame so clients parse one envelope
			// per message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
