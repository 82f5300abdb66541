package websocket

import (
	"context"
	"errors"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/fintrack/internal/auth"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is a single WebSocket connection bound to the session token it was
// opened with.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	userID int64
	token  string
}

func NewClient(hub *Hub, conn *ws.Conn, userID int64, token string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		token:  token,
	}
}

// close ends the connection without waiting for the close handshake.
func (c *Client) close() {
	if c.conn == nil {
		return
	}
	go c.conn.Close(ws.StatusPolicyViolation, "session ended")
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump discards incoming messages until the connection errors.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump drains the send channel. Each ping interval it also checks that
// the session still authenticates and pings to detect dead peers.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := c.hub.resolve(ctx, c); errors.Is(err, auth.ErrUnauthenticated) {
				return
			}
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
