package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	// Clients only listen; anything they send is discarded.
	readLimit = 512
)

// Client is one WebSocket connection of a signed-in member.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	memberID string
	send     chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn, memberID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		memberID: memberID,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Run registers the client, starts the write pump and the optional
// companion goroutine, then runs the read pump. It blocks until the
// connection is closed; companion's context is canceled at that point.
func (c *Client) Run(ctx context.Context, companion func(ctx context.Context)) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.conn != nil {
		c.conn.SetReadLimit(readLimit)
	}
	go c.writePump(ctx)
	if companion != nil {
		go companion(ctx)
	}
	c.readPump(ctx)
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
