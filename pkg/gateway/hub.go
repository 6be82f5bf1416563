// Package gateway maintains the real-time session layer: it accepts
// websocket connections, tracks who is online, and relays game events
// between the participants of a room.
package gateway

import (
	"context"
	"time"

	"github.com/cuberace/cuberace/pkg/events"
	"github.com/cuberace/cuberace/pkg/history"
	"github.com/cuberace/cuberace/pkg/journal"
	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
)

const writeTimeout = 5 * time.Second

type inboundEvent struct {
	client *Client
	event  *events.Event
}

// HubOptions are the options for creating a Hub. History and Journal are
// optional; a nil value disables that concern.
type HubOptions struct {
	Rooms   *rooms.Manager
	Players *players.Service
	History history.Repository
	Journal journal.Journal
}

// Hub serializes all session traffic through a single run loop. Every
// register, unregister and inbound event goes through the loop's
// channels, so events within a room are relayed in the order they were
// received.
type Hub struct {
	rooms   *rooms.Manager
	players *players.Service
	history history.Repository
	journal journal.Journal

	registry   *registry
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	done       chan struct{}
}

// NewHub creates a Hub. Run must be called before clients are attached.
func NewHub(opts HubOptions) *Hub {
	return &Hub{
		rooms:      opts.Rooms,
		players:    opts.Players,
		history:    opts.History,
		journal:    opts.Journal,
		registry:   newRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		done:       make(chan struct{}),
	}
}

// Register attaches an identified client to the hub. It is a no-op once
// the run loop has stopped, so connection handlers never hang on a hub
// that is shutting down.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister detaches a client. The room and its records survive; only
// the connection is dropped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		_ = c.Conn.Close()
	}
}

// Dispatch hands an inbound event to the run loop.
func (h *Hub) Dispatch(c *Client, e *events.Event) {
	select {
	case h.inbound <- inboundEvent{client: c, event: e}:
	case <-h.done:
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info("gateway hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			log.Info("gateway hub stopped")
			return
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case in := <-h.inbound:
			h.handleInbound(ctx, in.client, in.event)
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	h.registry.add(c)
	log.Info("player %s online in room %s", c.PlayerID, c.RoomID)

	room, err := h.rooms.Get(ctx, c.RoomID)
	if err != nil {
		log.Warn("failed to load room %s for player %s: %v", c.RoomID, c.PlayerID, err)
		h.sendError(ctx, c, "unknown room")
		return
	}
	if room.GameState != rooms.GameStateInit || len(room.Players) < rooms.MaxPlayers {
		return
	}
	for _, id := range room.Players {
		if _, ok := h.registry.get(id); !ok {
			return
		}
	}
	h.startGame(ctx, room)
}

// startGame transitions an init room whose participants are all online
// into a running race and tells both sides.
func (h *Hub) startGame(ctx context.Context, room *rooms.Room) {
	if err := h.rooms.SetGameState(ctx, room.ID, rooms.GameStateInProgress); err != nil {
		log.Error("failed to start room %s: %v", room.ID, err)
		return
	}
	room.GameState = rooms.GameStateInProgress

	participants := make([]*players.Player, 0, len(room.Players))
	for _, id := range room.Players {
		p, err := h.players.Get(ctx, id)
		if err != nil {
			log.Warn("failed to load participant %s of room %s: %v", id, room.ID, err)
			continue
		}
		participants = append(participants, p)
	}

	startTime := time.Now().UTC()
	ev, err := events.New(events.EventTypeGameStarted, &events.GameStarted{
		Room:         room,
		Participants: participants,
		StartTime:    startTime,
	})
	if err != nil {
		log.Error("failed to build start event for room %s: %v", room.ID, err)
		return
	}
	h.journalEvent(room.ID, ev)
	h.broadcast(ctx, room, ev, "")

	if h.history != nil && len(room.Players) == rooms.MaxPlayers {
		err := h.history.InsertMatch(ctx, &history.Match{
			RoomID:    room.ID,
			Player1ID: room.Players[0],
			Player2ID: room.Players[1],
			Variant:   room.Variant,
			StartedAt: startTime,
		})
		if err != nil {
			log.Warn("failed to record match start for room %s: %v", room.ID, err)
		}
	}
	log.Info("room %s started with %v", room.ID, room.Players)
}

func (h *Hub) handleUnregister(c *Client) {
	if h.registry.remove(c) {
		log.Info("player %s offline", c.PlayerID)
	}
	_ = c.Conn.Close()
}

func (h *Hub) handleInbound(ctx context.Context, c *Client, e *events.Event) {
	switch e.Type {
	case events.EventTypeCubeMoved:
		h.handleCubeMoved(ctx, c, e)
	case events.EventTypeGameFinished:
		h.handleGameFinished(ctx, c, e)
	case events.EventTypePlayerOnline:
		// Identity is established by the connection handler; a repeat
		// announcement is harmless.
	default:
		log.Warn("unexpected %s event from player %s", e.Type, c.PlayerID)
		h.sendError(ctx, c, "unexpected event type")
	}
}

func (h *Hub) handleCubeMoved(ctx context.Context, c *Client, e *events.Event) {
	var moved events.CubeMoved
	if err := e.DecodeValue(&moved); err != nil {
		log.Warn("bad move from player %s: %v", c.PlayerID, err)
		h.sendError(ctx, c, "invalid move payload")
		return
	}

	// Membership comes from the store on every relay; the connection's
	// own idea of its room is not authoritative.
	room, err := h.rooms.Get(ctx, c.RoomID)
	if err != nil {
		log.Warn("failed to load room %s for move relay: %v", c.RoomID, err)
		h.sendError(ctx, c, "unknown room")
		return
	}
	if !room.HasPlayer(c.PlayerID) {
		h.sendError(ctx, c, "not a participant")
		return
	}

	h.journalEvent(room.ID, e)
	h.broadcast(ctx, room, e, c.PlayerID)
}

func (h *Hub) handleGameFinished(ctx context.Context, c *Client, e *events.Event) {
	var finished events.GameFinished
	if err := e.DecodeValue(&finished); err != nil {
		log.Warn("bad finish from player %s: %v", c.PlayerID, err)
		h.sendError(ctx, c, "invalid finish payload")
		return
	}

	room, err := h.rooms.Get(ctx, c.RoomID)
	if err != nil {
		log.Warn("failed to load room %s for finish: %v", c.RoomID, err)
		h.sendError(ctx, c, "unknown room")
		return
	}
	if !room.HasPlayer(c.PlayerID) {
		h.sendError(ctx, c, "not a participant")
		return
	}
	if room.GameState == rooms.GameStateFinished {
		return
	}

	h.journalEvent(room.ID, e)
	h.broadcast(ctx, room, e, "")

	if err := h.rooms.SetGameState(ctx, room.ID, rooms.GameStateFinished); err != nil {
		log.Error("failed to mark room %s finished: %v", room.ID, err)
	}
	endTime := finished.EndTime
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	if h.history != nil {
		if err := h.history.FinishMatch(ctx, room.ID, finished.WinnerID, endTime); err != nil {
			log.Warn("failed to record match finish for room %s: %v", room.ID, err)
		}
	}
	h.settlePlayers(ctx, room, finished.WinnerID)

	if err := h.rooms.DeleteWithPlayers(ctx, room.ID); err != nil {
		log.Error("failed to tear down room %s: %v", room.ID, err)
	}
	log.Info("room %s finished, winner %s", room.ID, finished.WinnerID)
}

// settlePlayers applies the match outcome to the participant records.
func (h *Hub) settlePlayers(ctx context.Context, room *rooms.Room, winnerID string) {
	for _, id := range room.Players {
		p, err := h.players.Get(ctx, id)
		if err != nil {
			log.Warn("failed to load player %s for settlement: %v", id, err)
			continue
		}
		p.State = players.StateNotPlaying
		p.ScrambledCube = nil
		if id == winnerID {
			p.Rating += history.RatingIncrement
			p.TotalWins++
		}
		if err := h.players.Upsert(ctx, p); err != nil {
			log.Warn("failed to settle player %s: %v", id, err)
		}
	}
}

// broadcast sends the event to every registered participant of the room
// except the one named by skip. A write failure drops that connection.
func (h *Hub) broadcast(ctx context.Context, room *rooms.Room, e *events.Event, skip string) {
	b, err := events.Encode(e)
	if err != nil {
		log.Error("failed to encode %s event: %v", e.Type, err)
		return
	}
	for _, id := range room.Players {
		if id == skip {
			continue
		}
		c, ok := h.registry.get(id)
		if !ok {
			continue
		}
		if err := h.write(ctx, c, b); err != nil {
			log.Warn("failed to write to player %s: %v", id, err)
			h.registry.remove(c)
			_ = c.Conn.Close()
		}
	}
}

func (h *Hub) write(ctx context.Context, c *Client, b []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, b)
}

func (h *Hub) sendError(ctx context.Context, c *Client, msg string) {
	ev, err := events.New(events.EventTypeError, &events.Error{Message: msg})
	if err != nil {
		return
	}
	b, err := events.Encode(ev)
	if err != nil {
		return
	}
	if err := h.write(ctx, c, b); err != nil {
		log.Warn("failed to write error to player %s: %v", c.PlayerID, err)
	}
}

func (h *Hub) journalEvent(roomID string, e *events.Event) {
	if h.journal == nil {
		return
	}
	if err := h.journal.Append(roomID, e); err != nil {
		log.Warn("failed to journal %s event for room %s: %v", e.Type, roomID, err)
	}
}
