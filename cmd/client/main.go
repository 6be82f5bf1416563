package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/cuberace/cuberace/pkg/client/network"
	"github.com/cuberace/cuberace/pkg/cube"
	"github.com/cuberace/cuberace/pkg/events"
	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/matchmaking"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/queue"
	"github.com/cuberace/cuberace/pkg/version"
)

// A headless race client. It matchmakes through the HTTP API, joins the
// session channel and plays random moves until its cube is solved or the
// opponent finishes first. Useful for end-to-end smoke runs.
func main() {
	apiAddr := flag.String("api-addr", "http://localhost:8080", "HTTP API address")
	wsAddr := flag.String("ws-addr", "ws://localhost:8081", "WebSocket address")
	playerID := flag.String("player-id", fmt.Sprintf("bot-%d", time.Now().UnixNano()), "Player id")
	variant := flag.String("variant", "3x3 cube", "Game variant to queue for")
	moveInterval := flag.Duration("move-interval", 500*time.Millisecond, "Delay between moves")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	log.SetDefaultLogger(log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel))

	log.Info("Starting client version %s as %s", version.Get(), *playerID)
	ctx := context.Background()

	room, err := matchmake(ctx, *apiAddr, *playerID, *variant)
	if err != nil {
		panic(fmt.Sprintf("Matchmaking failed: %v", err))
	}
	log.Info("Matched into room %s", room.ID)

	eventQueue := queue.NewInMemoryQueue()
	wsClient := network.NewWSClient(*wsAddr, eventQueue)
	if err := wsClient.Connect(*playerID, room.ID); err != nil {
		panic(fmt.Sprintf("Failed to connect: %v", err))
	}
	defer wsClient.Close()
	go func() {
		if err := wsClient.HandleMessages(ctx); err != nil {
			log.Debug("Connection closed: %v", err)
		}
	}()

	state := waitForStart(eventQueue, room.InitialState)
	log.Info("Game started, racing")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(*moveInterval)
	defer ticker.Stop()
	for range ticker.C {
		if opponentFinished(eventQueue) {
			log.Info("Opponent finished first")
			return
		}

		m := randomMove(rng)
		next, err := cube.Apply(state, m)
		if err != nil {
			panic(fmt.Sprintf("Failed to apply move: %v", err))
		}
		state = next

		ev, err := events.New(events.EventTypeCubeMoved, &events.CubeMoved{
			RoomID:    room.ID,
			PlayerID:  *playerID,
			Move:      m.String(),
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to build move event: %v", err))
		}
		if err := wsClient.SendEvent(ev); err != nil {
			panic(fmt.Sprintf("Failed to send move: %v", err))
		}

		if cube.IsSolved(state) {
			log.Info("Solved it, claiming the win")
			finished, err := events.New(events.EventTypeGameFinished, &events.GameFinished{
				RoomID:   room.ID,
				WinnerID: *playerID,
				EndTime:  time.Now().UTC(),
			})
			if err != nil {
				panic(fmt.Sprintf("Failed to build finish event: %v", err))
			}
			if err := wsClient.SendEvent(finished); err != nil {
				panic(fmt.Sprintf("Failed to send finish: %v", err))
			}
			return
		}
	}
}

// matchmake queues through the HTTP API and polls until a room is ready.
func matchmake(ctx context.Context, apiAddr, playerID, variant string) (*roomInfo, error) {
	body, err := json.Marshal(map[string]interface{}{
		"variant": variant,
		"player":  &players.Player{ID: playerID, Username: playerID},
	})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(apiAddr+"/matchmake/start", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matchmake start returned %d", resp.StatusCode)
	}
	var result struct {
		Queued bool      `json:"queued"`
		Room   *roomInfo `json:"room"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.Queued {
		return result.Room, nil
	}

	log.Info("Queued, polling for an opponent")
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
		resp, err := http.Get(fmt.Sprintf("%s/matchmake/poll?playerId=%s", apiAddr, playerID))
		if err != nil {
			return nil, err
		}
		var poll struct {
			Status string    `json:"status"`
			Room   *roomInfo `json:"room"`
		}
		err = json.NewDecoder(resp.Body).Decode(&poll)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if poll.Status == matchmaking.StatusMatched && len(poll.Room.Players) == 2 {
			return poll.Room, nil
		}
	}
}

func randomMove(rng *rand.Rand) cube.Move {
	return cube.Move{
		Face:      cube.FaceLetters[rng.Intn(len(cube.FaceLetters))],
		Clockwise: rng.Intn(2) == 0,
	}
}

type roomInfo struct {
	ID           string    `json:"id"`
	Players      []string  `json:"players"`
	InitialState cube.Cube `json:"initial_state"`
}

// waitForStart drains the event queue until GameStarted arrives and
// returns the scramble to race from.
func waitForStart(q queue.Queue, fallback cube.Cube) cube.Cube {
	for {
		item := q.Dequeue()
		if item == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ev := item.(*events.Event)
		if ev.Type != events.EventTypeGameStarted {
			continue
		}
		var started events.GameStarted
		if err := ev.DecodeValue(&started); err != nil || started.Room == nil {
			return fallback
		}
		return started.Room.InitialState
	}
}

// opponentFinished reports whether a GameFinished event has arrived.
func opponentFinished(q queue.Queue) bool {
	for _, item := range q.ReadAllMessages() {
		ev := item.(*events.Event)
		if ev.Type == events.EventTypeGameFinished {
			return true
		}
	}
	return false
}
