// Package events defines the game event envelope and the closed set of
// event payloads exchanged between clients and the session gateway.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
)

// EventType identifies the payload carried by an Event.
type EventType string

const (
	EventTypePlayerOnline EventType = "PlayerOnline"
	EventTypeGameStarted  EventType = "GameStarted"
	EventTypeCubeMoved    EventType = "CubeMoved"
	EventTypeGameFinished EventType = "GameFinished"
	EventTypeError        EventType = "Error"
)

// Event is the wire envelope: a type tag plus the payload for that type.
type Event struct {
	Type  EventType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// PlayerOnline announces a connection's identity and the room it belongs
// to. It must be the first event on every connection.
type PlayerOnline struct {
	PlayerID string `json:"player_id"`
	RoomID   string `json:"room_id"`
}

// GameStarted tells both participants the race is on.
type GameStarted struct {
	Room         *rooms.Room       `json:"room"`
	Participants []*players.Player `json:"participants"`
	StartTime    time.Time         `json:"start_time"`
}

// CubeMoved relays one participant's move to the other.
type CubeMoved struct {
	RoomID    string    `json:"room_id"`
	PlayerID  string    `json:"player_id"`
	Move      string    `json:"move"`
	Timestamp time.Time `json:"timestamp"`
}

// GameFinished reports the winner and ends the race.
type GameFinished struct {
	RoomID   string    `json:"room_id"`
	WinnerID string    `json:"winner_id"`
	EndTime  time.Time `json:"end_time"`
}

// Error carries a server-side rejection back to one client.
type Error struct {
	Message string `json:"message"`
}

// New builds an event of the given type around the payload.
func New(t EventType, value interface{}) (*Event, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", t, err)
	}
	return &Event{Type: t, Value: b}, nil
}

// Encode serializes the event for the wire.
func Encode(e *Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %v", err)
	}
	return b, nil
}

// Decode parses a wire message into an envelope, rejecting unknown types.
func Decode(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %v", err)
	}
	switch e.Type {
	case EventTypePlayerOnline, EventTypeGameStarted, EventTypeCubeMoved,
		EventTypeGameFinished, EventTypeError:
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", e.Type)
	}
}

// DecodeValue unmarshals the envelope's payload into the given struct.
func (e *Event) DecodeValue(into interface{}) error {
	if err := json.Unmarshal(e.Value, into); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v", e.Type, err)
	}
	return nil
}
