// Package players persists player records and the per-variant waiting
// queues in the shared store.
package players

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuberace/cuberace/pkg/cube"
	"github.com/cuberace/cuberace/pkg/store"
)

// Player states.
const (
	StateWaiting    = "waiting"
	StatePlaying    = "playing"
	StateNotPlaying = "not playing"
)

const (
	playersKey = "players"

	// DefaultQueueTTL bounds how long a waiting-queue entry stays alive
	// without the player re-polling.
	DefaultQueueTTL = 5 * time.Minute
)

// Player is a player record as stored in the players hash.
type Player struct {
	ID            string             `json:"player_id"`
	Username      string             `json:"username"`
	State         string             `json:"player_state"`
	Rating        int                `json:"rating"`
	TotalWins     int                `json:"total_wins"`
	WinPercentage float64            `json:"win_percentage"`
	TopSpeeds     map[string]float64 `json:"top_speeds,omitempty"`
	ScrambledCube *cube.Cube         `json:"scrambled_cube,omitempty"`
}

func waitingKey(variant string) string {
	return "mm:" + variant + ":waiting"
}

func queueMarkerKey(playerID string) string {
	return "queue:" + playerID
}

// Service reads and writes player records and waiting queues.
type Service struct {
	store    store.Store
	queueTTL time.Duration
}

// NewService creates a Service over the given store.
func NewService(s store.Store) *Service {
	return &Service{store: s, queueTTL: DefaultQueueTTL}
}

// Insert stores a new player record. It returns false without modifying
// anything when a record with the same id already exists.
func (s *Service) Insert(ctx context.Context, p *Player) (bool, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to marshal player %s: %v", p.ID, err)
	}
	return s.store.HSetNX(ctx, playersKey, p.ID, string(b))
}

// Upsert stores a player record, replacing any existing one.
func (s *Service) Upsert(ctx context.Context, p *Player) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal player %s: %v", p.ID, err)
	}
	return s.store.HSet(ctx, playersKey, p.ID, string(b))
}

// Get loads a player record. A missing record is reported as
// ErrPlayerNotFound.
func (s *Service) Get(ctx context.Context, playerID string) (*Player, error) {
	v, err := s.store.HGet(ctx, playersKey, playerID)
	if err != nil {
		if store.IsNil(err) {
			return nil, &ErrPlayerNotFound{ID: playerID}
		}
		return nil, err
	}
	var p Player
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player %s: %v", playerID, err)
	}
	return &p, nil
}

// Delete removes a player record. Deleting a missing record is a no-op.
func (s *Service) Delete(ctx context.Context, playerID string) error {
	return s.store.HDel(ctx, playersKey, playerID)
}

// EnqueueWaiting puts the player at the back of the variant's waiting
// queue and arms the queue-liveness marker with the queue TTL.
func (s *Service) EnqueueWaiting(ctx context.Context, playerID, variant string) error {
	if err := s.store.LPush(ctx, waitingKey(variant), playerID); err != nil {
		return err
	}
	return s.store.Set(ctx, queueMarkerKey(playerID), variant, s.queueTTL)
}

// DequeueWaiting pops the longest-waiting player from the variant's
// queue and clears their liveness marker. An empty queue is reported as
// store.ErrNil.
func (s *Service) DequeueWaiting(ctx context.Context, variant string) (string, error) {
	playerID, err := s.store.RPop(ctx, waitingKey(variant))
	if err != nil {
		return "", err
	}
	if err := s.store.Delete(ctx, queueMarkerKey(playerID)); err != nil {
		return "", err
	}
	return playerID, nil
}

// RemoveWaiting takes the player out of the variant's queue, wherever
// they are in it, and clears their liveness marker. It reports whether
// the player was actually still queued, so callers can tell a removal
// apart from a race with a dequeue that already claimed the entry.
func (s *Service) RemoveWaiting(ctx context.Context, playerID, variant string) (bool, error) {
	n, err := s.store.LRem(ctx, waitingKey(variant), playerID)
	if err != nil {
		return false, err
	}
	if err := s.store.Delete(ctx, queueMarkerKey(playerID)); err != nil {
		return false, err
	}
	return n > 0, nil
}

// WaitingAlive reports whether the player's queue-liveness marker is
// still present.
func (s *Service) WaitingAlive(ctx context.Context, playerID string) (bool, error) {
	return s.store.Exists(ctx, queueMarkerKey(playerID))
}

// WaitingList returns the ids currently in the variant's queue, back to
// front.
func (s *Service) WaitingList(ctx context.Context, variant string) ([]string, error) {
	return s.store.LRange(ctx, waitingKey(variant), 0, -1)
}
