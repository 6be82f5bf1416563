package gateway

import (
	"context"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/cuberace/cuberace/pkg/events"
	"github.com/cuberace/cuberace/pkg/log"
)

// ServerOptions are the options for creating a websocket Server.
type ServerOptions struct {
	Hub *Hub
	// OriginPatterns is passed through to the websocket accept options.
	OriginPatterns []string
}

// Server upgrades HTTP requests to websocket sessions and feeds them into
// the hub.
type Server struct {
	hub            *Hub
	originPatterns []string
}

// NewServer creates a websocket Server on the given hub.
func NewServer(opts ServerOptions) *Server {
	return &Server{
		hub:            opts.Hub,
		originPatterns: opts.OriginPatterns,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		log.Warn("failed to accept websocket connection: %v", err)
		return
	}
	s.handleConnection(r, conn)
}

// handleConnection runs the read loop for one connection. The first event
// must be PlayerOnline; it establishes which player and room the
// connection speaks for.
func (s *Server) handleConnection(r *http.Request, conn *websocket.Conn) {
	ctx := r.Context()
	wc := &wsConn{conn: conn}

	_, b, err := conn.Read(ctx)
	if err != nil {
		_ = wc.Close()
		return
	}
	ev, err := events.Decode(b)
	if err != nil || ev.Type != events.EventTypePlayerOnline {
		log.Warn("connection did not identify itself: %v", err)
		writeError(ctx, wc, "expected PlayerOnline")
		_ = wc.Close()
		return
	}
	var online events.PlayerOnline
	if err := ev.DecodeValue(&online); err != nil || online.PlayerID == "" || online.RoomID == "" {
		writeError(ctx, wc, "invalid PlayerOnline payload")
		_ = wc.Close()
		return
	}

	client := &Client{
		PlayerID: online.PlayerID,
		RoomID:   online.RoomID,
		Conn:     wc,
	}
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	for {
		_, b, err := conn.Read(ctx)
		if err != nil {
			log.Debug("connection for player %s closed: %v", client.PlayerID, err)
			return
		}
		ev, err := events.Decode(b)
		if err != nil {
			log.Warn("bad message from player %s: %v", client.PlayerID, err)
			writeError(ctx, wc, "invalid message format")
			continue
		}
		s.hub.Dispatch(client, ev)
	}
}

func writeError(ctx context.Context, c Conn, msg string) {
	ev, err := events.New(events.EventTypeError, &events.Error{Message: msg})
	if err != nil {
		return
	}
	b, err := events.Encode(ev)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = c.Write(writeCtx, b)
}
