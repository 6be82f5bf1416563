// Package network manages the client side of the duplex game channel.
package network

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/cuberace/cuberace/pkg/events"
	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/queue"
)

// WSClient represents a WebSocket client.
type WSClient struct {
	serverAddr string
	eventQueue queue.Queue
	conn       *websocket.Conn
}

// NewWSClient creates a new WebSocket client. Inbound game events land in
// eventQueue; the caller drains it at its own pace.
func NewWSClient(serverAddr string, eventQueue queue.Queue) *WSClient {
	return &WSClient{
		serverAddr: serverAddr,
		eventQueue: eventQueue,
	}
}

// Connect establishes a connection to the WebSocket server and announces
// the player's identity as the first event.
func (c *WSClient) Connect(playerID, roomID string) error {
	log.Info("Connecting to WebSocket server at %s", c.serverAddr)
	conn, _, err := websocket.DefaultDialer.Dial(c.serverAddr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	c.conn = conn

	online, err := events.New(events.EventTypePlayerOnline, &events.PlayerOnline{
		PlayerID: playerID,
		RoomID:   roomID,
	})
	if err != nil {
		return err
	}
	return c.SendEvent(online)
}

// SendEvent writes one event to the server.
func (c *WSClient) SendEvent(e *events.Event) error {
	b, err := events.Encode(e)
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("failed to write message: %v", err)
	}
	return nil
}

// HandleMessages handles incoming messages from the WebSocket server.
func (c *WSClient) HandleMessages(ctx context.Context) error {
	defer c.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading WebSocket message: %v", err)
			}
			log.Trace("Connection closed")
			return err
		}

		if err := c.handleMessage(message); err != nil {
			log.Error("Failed to handle message: %v", err)
		}
	}
}

// handleMessage processes a received message.
func (c *WSClient) handleMessage(b []byte) error {
	ev, err := events.Decode(b)
	if err != nil {
		return fmt.Errorf("failed to decode event: %v", err)
	}
	log.Trace("Received event of type %s", ev.Type)

	switch ev.Type {
	case events.EventTypeGameStarted, events.EventTypeCubeMoved, events.EventTypeGameFinished:
		if err := c.eventQueue.Enqueue(ev); err != nil {
			return fmt.Errorf("failed to enqueue event: %v", err)
		}
	case events.EventTypeError:
		var serverErr events.Error
		if err := ev.DecodeValue(&serverErr); err != nil {
			return err
		}
		log.Warn("Server error: %s", serverErr.Message)
	default:
		return fmt.Errorf("received unexpected event type: %s", ev.Type)
	}
	return nil
}

// Close closes the connection.
func (c *WSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
