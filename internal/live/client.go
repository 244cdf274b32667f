package live

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// Client is one websocket subscriber watching a single question.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	questionID string
}

func NewClient(hub *Hub, conn *websocket.Conn, questionID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 16),
		questionID: questionID,
	}
}

// Serve registers the client and blocks until the peer disconnects or ctx ends.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, questionID string) {
	c := NewClient(h, conn, questionID)
	if !h.Register(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go c.WritePump(ctx)
	c.ReadPump(ctx)
}

// WritePump sends messages from the hub to the websocket connection.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	for m := range c.send {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.conn.Write(wctx, websocket.MessageText, m)
		cancel()
		if err != nil {
			c.hub.log.WithError(err).WithField("question_id", c.questionID).Debug("live write failed")
			return
		}
	}
}

// ReadPump drains the connection so control frames are handled, and
// unregisters the client once the peer goes away.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			entry := c.hub.log.WithField("question_id", c.questionID)
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				entry.Debug("live client disconnected")
			} else {
				entry.WithError(err).Debug("live read ended")
			}
			return
		}
	}
}
