// Package matchmaking pairs players into rooms, either through the
// anonymous per-variant waiting queues or directly between friends. All
// pairing decisions run under the store's matchmaking lock so concurrent
// requests never double-match a player or split a pair.
package matchmaking

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuberace/cuberace/pkg/cube"
	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
	"github.com/cuberace/cuberace/pkg/store"
)

const (
	// LockKey guards every mutation of the waiting queues and their
	// pre-created rooms. Anything touching those structures outside this
	// package takes the same lock.
	LockKey = "lock:matchmaking"

	// ScrambleMoves is the length of the opening scramble.
	ScrambleMoves = 20
)

// Poll statuses.
const (
	StatusQueued  = "queued"
	StatusMatched = "matched"
)

// Result is the outcome of TryMatchOrEnqueue. Queued means the player is
// waiting in the queue; the pre-created room carries their scramble either
// way.
type Result struct {
	Queued bool        `json:"queued"`
	Room   *rooms.Room `json:"room"`
}

// FriendsResult is the outcome of StartFriendsMatch.
type FriendsResult struct {
	Started bool        `json:"started"`
	Room    *rooms.Room `json:"room"`
}

// PollResult is the outcome of Poll.
type PollResult struct {
	Status string      `json:"status"`
	Room   *rooms.Room `json:"room,omitempty"`
}

// MatchmakerOptions are the options for creating a Matchmaker.
type MatchmakerOptions struct {
	Store   store.Store
	Players *players.Service
	Rooms   *rooms.Manager
}

// Matchmaker pairs players into rooms.
type Matchmaker struct {
	store   store.Store
	players *players.Service
	rooms   *rooms.Manager

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMatchmaker creates a Matchmaker.
func NewMatchmaker(opts MatchmakerOptions) *Matchmaker {
	return &Matchmaker{
		store:   opts.Store,
		players: opts.Players,
		rooms:   opts.Rooms,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *Matchmaker) scramble() (cube.Cube, []cube.Move) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cube.Scramble(ScrambleMoves, m.rng)
}

// TryMatchOrEnqueue either pairs the player with the longest-waiting
// opponent for the variant or, when nobody is waiting, pre-creates a room
// with a fresh scramble and puts the player in the queue. A player whose
// index already points at a live room gets ErrAlreadyMatched.
func (m *Matchmaker) TryMatchOrEnqueue(ctx context.Context, player *players.Player, variant string) (*Result, error) {
	var result *Result
	err := m.store.WithLock(ctx, LockKey, func(ctx context.Context) error {
		var err error
		result, err = m.tryMatchOrEnqueue(ctx, player, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Matchmaker) tryMatchOrEnqueue(ctx context.Context, player *players.Player, variant string) (*Result, error) {
	if err := m.rejectIfMatched(ctx, player.ID); err != nil {
		return nil, err
	}

	opponentRoom, err := m.popOpponentRoom(ctx, variant, player.ID)
	if err != nil {
		return nil, err
	}
	if opponentRoom == nil {
		room, err := m.enqueue(ctx, player, variant)
		if err != nil {
			return nil, err
		}
		return &Result{Queued: true, Room: room}, nil
	}

	room, err := m.joinRoom(ctx, player, opponentRoom)
	if err != nil {
		return nil, err
	}
	return &Result{Queued: false, Room: room}, nil
}

// rejectIfMatched fails with ErrAlreadyMatched when the player's index
// points at a live room. A dangling index entry is cleared instead.
func (m *Matchmaker) rejectIfMatched(ctx context.Context, playerID string) error {
	roomID, err := m.rooms.GetPlayerRoom(ctx, playerID)
	if err != nil {
		if store.IsNil(err) {
			return nil
		}
		return err
	}
	if _, err := m.rooms.Get(ctx, roomID); err != nil {
		if rooms.IsRoomNotFound(err) {
			return m.rooms.ClearPlayerRoom(ctx, playerID)
		}
		return err
	}
	return &ErrAlreadyMatched{PlayerID: playerID, RoomID: roomID}
}

// popOpponentRoom pops waiting players off the variant's queue until one
// with a live, non-full room is found. It returns nil when the queue runs
// out.
func (m *Matchmaker) popOpponentRoom(ctx context.Context, variant, selfID string) (*rooms.Room, error) {
	for {
		opponentID, err := m.players.DequeueWaiting(ctx, variant)
		if err != nil {
			if store.IsNil(err) {
				return nil, nil
			}
			return nil, err
		}
		if opponentID == selfID {
			continue
		}
		if _, err := m.players.Get(ctx, opponentID); err != nil {
			if players.IsPlayerNotFound(err) {
				log.Debug("skipping queued player %s: record gone", opponentID)
				continue
			}
			return nil, err
		}
		roomID, err := m.rooms.GetPlayerRoom(ctx, opponentID)
		if err != nil {
			if store.IsNil(err) {
				log.Debug("skipping queued player %s: no room index", opponentID)
				continue
			}
			return nil, err
		}
		room, err := m.rooms.Get(ctx, roomID)
		if err != nil {
			if rooms.IsRoomNotFound(err) {
				log.Debug("skipping queued player %s: room %s gone", opponentID, roomID)
				continue
			}
			return nil, err
		}
		if len(room.Players) >= rooms.MaxPlayers {
			continue
		}
		return room, nil
	}
}

// enqueue pre-creates a room carrying a fresh scramble, indexes the
// player to it and puts them in the variant's waiting queue.
func (m *Matchmaker) enqueue(ctx context.Context, player *players.Player, variant string) (*rooms.Room, error) {
	scramble, moves := m.scramble()
	room := &rooms.Room{
		ID:           uuid.NewString(),
		Players:      []string{player.ID},
		Variant:      variant,
		GameState:    rooms.GameStateInit,
		InitialState: scramble,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := m.rooms.Insert(ctx, room); err != nil {
		return nil, err
	}
	if err := m.rooms.SetPlayerRoom(ctx, player.ID, room.ID); err != nil {
		return nil, err
	}

	player.State = players.StateWaiting
	player.ScrambledCube = &scramble
	if err := m.players.Upsert(ctx, player); err != nil {
		return nil, err
	}
	if err := m.players.EnqueueWaiting(ctx, player.ID, variant); err != nil {
		return nil, err
	}
	log.Debug("queued player %s for %s in room %s (scramble %d moves)", player.ID, variant, room.ID, len(moves))
	return room, nil
}

// joinRoom adds the player to the opponent's pre-created room, adopting
// its scramble, and marks both participants as playing.
func (m *Matchmaker) joinRoom(ctx context.Context, player *players.Player, room *rooms.Room) (*rooms.Room, error) {
	room.Players = append(room.Players, player.ID)
	if err := m.rooms.Upsert(ctx, room); err != nil {
		return nil, err
	}
	if err := m.rooms.SetPlayerRoom(ctx, player.ID, room.ID); err != nil {
		return nil, err
	}

	player.State = players.StatePlaying
	player.ScrambledCube = &room.InitialState
	if err := m.players.Upsert(ctx, player); err != nil {
		return nil, err
	}
	for _, id := range room.Players {
		if id == player.ID {
			continue
		}
		opponent, err := m.players.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		opponent.State = players.StatePlaying
		if err := m.players.Upsert(ctx, opponent); err != nil {
			return nil, err
		}
	}
	log.Info("matched player %s into room %s with %v", player.ID, room.ID, room.Players)
	return room, nil
}

// StartFriendsMatch handles a private match. When the opponent is not
// ready yet, a waiting room is created for this player alone, never
// entering the anonymous queue. When the opponent is ready, the player
// joins the opponent's waiting room and the pair starts.
func (m *Matchmaker) StartFriendsMatch(ctx context.Context, player *players.Player, variant string, opponentReady bool, opponentID string) (*FriendsResult, error) {
	var result *FriendsResult
	err := m.store.WithLock(ctx, LockKey, func(ctx context.Context) error {
		var err error
		result, err = m.startFriendsMatch(ctx, player, variant, opponentReady, opponentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Matchmaker) startFriendsMatch(ctx context.Context, player *players.Player, variant string, opponentReady bool, opponentID string) (*FriendsResult, error) {
	if err := m.rejectIfMatched(ctx, player.ID); err != nil {
		return nil, err
	}

	if !opponentReady {
		scramble, _ := m.scramble()
		room := &rooms.Room{
			ID:           uuid.NewString(),
			Players:      []string{player.ID},
			Variant:      variant,
			GameState:    rooms.GameStateInit,
			InitialState: scramble,
			CreatedAt:    time.Now().UTC(),
		}
		if _, err := m.rooms.Insert(ctx, room); err != nil {
			return nil, err
		}
		if err := m.rooms.SetPlayerRoom(ctx, player.ID, room.ID); err != nil {
			return nil, err
		}
		player.State = players.StateWaiting
		player.ScrambledCube = &scramble
		if err := m.players.Upsert(ctx, player); err != nil {
			return nil, err
		}
		return &FriendsResult{Started: false, Room: room}, nil
	}

	roomID, err := m.rooms.GetPlayerRoom(ctx, opponentID)
	if err != nil {
		if store.IsNil(err) {
			return nil, &rooms.ErrRoomNotFound{ID: "friend:" + opponentID}
		}
		return nil, err
	}
	room, err := m.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(room.Players) >= rooms.MaxPlayers {
		return nil, &ErrRoomFull{RoomID: room.ID}
	}
	joined, err := m.joinRoom(ctx, player, room)
	if err != nil {
		return nil, err
	}
	return &FriendsResult{Started: true, Room: joined}, nil
}

// Poll reports whether the player has been matched yet. A missing index
// entry means they are still queued; an index entry whose room record is
// gone also reads as queued, matching how clients already recover from
// expired rooms. A pre-created room that is still waiting for its second
// participant reads as queued too, so the status alone tells the waiting
// player when the pairing has landed.
func (m *Matchmaker) Poll(ctx context.Context, playerID string) (*PollResult, error) {
	roomID, err := m.rooms.GetPlayerRoom(ctx, playerID)
	if err != nil {
		if store.IsNil(err) {
			return &PollResult{Status: StatusQueued}, nil
		}
		return nil, err
	}
	room, err := m.rooms.Get(ctx, roomID)
	if err != nil {
		if rooms.IsRoomNotFound(err) {
			return &PollResult{Status: StatusQueued}, nil
		}
		return nil, err
	}
	if room.GameState == rooms.GameStateInit && len(room.Players) < rooms.MaxPlayers {
		return &PollResult{Status: StatusQueued}, nil
	}
	return &PollResult{Status: StatusMatched, Room: room}, nil
}
