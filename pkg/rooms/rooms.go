// Package rooms persists game rooms and the player-to-room index in the
// shared store and manages the room lifecycle.
package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuberace/cuberace/pkg/cube"
	"github.com/cuberace/cuberace/pkg/store"
)

// Game states a room moves through.
const (
	GameStateInit       = "init"
	GameStateInProgress = "in_progress"
	GameStateFinished   = "finished"
)

// MaxPlayers is the participant cap per room.
const MaxPlayers = 2

const (
	roomsKey      = "rooms"
	playerRoomKey = "player:room"
)

// Room is a game room as stored in the rooms hash. Players holds the
// participant ids in join order.
type Room struct {
	ID           string    `json:"id"`
	Players      []string  `json:"players"`
	Variant      string    `json:"variant"`
	GameState    string    `json:"game_state"`
	InitialState cube.Cube `json:"initial_state"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPlayer reports whether the player participates in the room.
func (r *Room) HasPlayer(playerID string) bool {
	for _, id := range r.Players {
		if id == playerID {
			return true
		}
	}
	return false
}

// Manager reads and writes rooms and the player-to-room index.
type Manager struct {
	store store.Store
}

// NewManager creates a Manager over the given store.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// Get loads a room. A missing room is reported as ErrRoomNotFound.
func (m *Manager) Get(ctx context.Context, roomID string) (*Room, error) {
	v, err := m.store.HGet(ctx, roomsKey, roomID)
	if err != nil {
		if store.IsNil(err) {
			return nil, &ErrRoomNotFound{ID: roomID}
		}
		return nil, err
	}
	var r Room
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room %s: %v", roomID, err)
	}
	return &r, nil
}

// Insert stores a new room. It returns false without modifying anything
// when a room with the same id already exists.
func (m *Manager) Insert(ctx context.Context, r *Room) (bool, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("failed to marshal room %s: %v", r.ID, err)
	}
	return m.store.HSetNX(ctx, roomsKey, r.ID, string(b))
}

// Upsert stores a room, replacing any existing one.
func (m *Manager) Upsert(ctx context.Context, r *Room) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room %s: %v", r.ID, err)
	}
	return m.store.HSet(ctx, roomsKey, r.ID, string(b))
}

// Delete removes a room record. Deleting a missing room is a no-op.
func (m *Manager) Delete(ctx context.Context, roomID string) error {
	return m.store.HDel(ctx, roomsKey, roomID)
}

// SetPlayerRoom points the player's index entry at the room.
func (m *Manager) SetPlayerRoom(ctx context.Context, playerID, roomID string) error {
	return m.store.HSet(ctx, playerRoomKey, playerID, roomID)
}

// GetPlayerRoom returns the room id the player's index entry points at.
// A missing entry is reported as store.ErrNil.
func (m *Manager) GetPlayerRoom(ctx context.Context, playerID string) (string, error) {
	return m.store.HGet(ctx, playerRoomKey, playerID)
}

// ClearPlayerRoom removes the player's index entry.
func (m *Manager) ClearPlayerRoom(ctx context.Context, playerID string) error {
	return m.store.HDel(ctx, playerRoomKey, playerID)
}

// SetGameState transitions the room's game state.
func (m *Manager) SetGameState(ctx context.Context, roomID, state string) error {
	r, err := m.Get(ctx, roomID)
	if err != nil {
		return err
	}
	r.GameState = state
	return m.Upsert(ctx, r)
}

// RemovePlayer takes the player out of the room and clears their index
// entry. It reports whether the player was actually a participant, so a
// repeated call returns false without an error. When the last participant
// leaves, the room record is deleted along with the index entry.
func (m *Manager) RemovePlayer(ctx context.Context, roomID, playerID string) (bool, error) {
	r, err := m.Get(ctx, roomID)
	if err != nil {
		if IsRoomNotFound(err) {
			if clearErr := m.ClearPlayerRoom(ctx, playerID); clearErr != nil {
				return false, clearErr
			}
			return false, nil
		}
		return false, err
	}

	if !r.HasPlayer(playerID) {
		return false, nil
	}

	remaining := make([]string, 0, len(r.Players))
	for _, id := range r.Players {
		if id != playerID {
			remaining = append(remaining, id)
		}
	}
	r.Players = remaining

	if err := m.ClearPlayerRoom(ctx, playerID); err != nil {
		return false, err
	}
	if len(r.Players) == 0 {
		if err := m.Delete(ctx, roomID); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := m.Upsert(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteWithPlayers removes the room and every participant's index entry
// as one logical step.
func (m *Manager) DeleteWithPlayers(ctx context.Context, roomID string) error {
	r, err := m.Get(ctx, roomID)
	if err != nil {
		if IsRoomNotFound(err) {
			return nil
		}
		return err
	}
	for _, id := range r.Players {
		if err := m.ClearPlayerRoom(ctx, id); err != nil {
			return err
		}
	}
	return m.Delete(ctx, roomID)
}
