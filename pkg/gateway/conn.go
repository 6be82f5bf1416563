package gateway

import (
	"context"

	"nhooyr.io/websocket"
)

// Conn is the transport surface the hub writes to. Tests substitute
// in-memory fakes.
type Conn interface {
	Write(ctx context.Context, b []byte) error
	Close() error
}

// wsConn adapts a websocket connection to Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Write(ctx context.Context, b []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, b)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// Client is one registered connection: an identified player in a room.
type Client struct {
	PlayerID string
	RoomID   string
	Conn     Conn
}
