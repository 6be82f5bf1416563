// Package workers holds the background jobs of the server process.
package workers

import (
	"context"
	"time"

	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/matchmaking"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
	"github.com/cuberace/cuberace/pkg/store"
)

type QueueExpiryWorker struct {
	store    store.Store
	players  *players.Service
	rooms    *rooms.Manager
	variants []string
	interval time.Duration
}

type NewQueueExpiryWorkerOptions struct {
	Store    store.Store
	Players  *players.Service
	Rooms    *rooms.Manager
	Variants []string
	Interval time.Duration
}

// NewQueueExpiryWorker creates a new QueueExpiryWorker.
// The worker periodically sweeps the waiting queues and drops entries
// whose liveness marker has lapsed, along with their pre-created rooms.
func NewQueueExpiryWorker(opts NewQueueExpiryWorkerOptions) *QueueExpiryWorker {
	return &QueueExpiryWorker{
		store:    opts.Store,
		players:  opts.Players,
		rooms:    opts.Rooms,
		variants: opts.Variants,
		interval: opts.Interval,
	}
}

func (w *QueueExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, variant := range w.variants {
				w.sweep(ctx, variant)
			}
		}
	}
}

func (w *QueueExpiryWorker) sweep(ctx context.Context, variant string) {
	ids, err := w.players.WaitingList(ctx, variant)
	if err != nil {
		log.Error("failed to list %s queue: %v", variant, err)
		return
	}
	for _, playerID := range ids {
		alive, err := w.players.WaitingAlive(ctx, playerID)
		if err != nil {
			log.Error("failed to check queue marker for %s: %v", playerID, err)
			continue
		}
		if alive {
			continue
		}
		if err := w.expire(ctx, playerID, variant); err != nil {
			log.Error("failed to expire queue entry for %s: %v", playerID, err)
		}
	}
}

// expire drops one lapsed entry: the queue slot, the pre-created room
// and the player's index entry. It runs under the matchmaking lock and
// only tears the room down when the entry was still queued, so an
// expiry racing a match never deletes a room that just went live.
func (w *QueueExpiryWorker) expire(ctx context.Context, playerID, variant string) error {
	return w.store.WithLock(ctx, matchmaking.LockKey, func(ctx context.Context) error {
		removed, err := w.players.RemoveWaiting(ctx, playerID, variant)
		if err != nil {
			return err
		}
		if !removed {
			log.Debug("queue entry for %s already claimed, leaving room alone", playerID)
			return nil
		}
		roomID, err := w.rooms.GetPlayerRoom(ctx, playerID)
		if err != nil {
			if store.IsNil(err) {
				return nil
			}
			return err
		}
		if err := w.rooms.DeleteWithPlayers(ctx, roomID); err != nil {
			return err
		}
		log.Info("expired queue entry for player %s, dropped room %s", playerID, roomID)
		return nil
	})
}
