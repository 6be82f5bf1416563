package gateway

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuberace/cuberace/pkg/cube"
	"github.com/cuberace/cuberace/pkg/events"
	"github.com/cuberace/cuberace/pkg/history"
	"github.com/cuberace/cuberace/pkg/journal"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
	"github.com/cuberace/cuberace/pkg/store"
)

type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (c *fakeConn) Write(ctx context.Context, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received(t *testing.T) []*events.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*events.Event, 0, len(c.writes))
	for _, b := range c.writes {
		ev, err := events.Decode(b)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

type hubEnv struct {
	hub     *Hub
	players *players.Service
	rooms   *rooms.Manager
	history history.Repository
	journal string
}

func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	s := store.NewRedisStore(store.RedisStoreOptions{Addr: mr.Addr()})
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() {
		_ = s.Close()
	})

	repo, err := history.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close(context.Background())
	})

	journalPath := filepath.Join(t.TempDir(), "events.jsonl.zst")
	jw, err := journal.Open(journalPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = jw.Close()
	})

	playerSvc := players.NewService(s)
	roomMgr := rooms.NewManager(s)
	hub := NewHub(HubOptions{
		Rooms:   roomMgr,
		Players: playerSvc,
		History: repo,
		Journal: jw,
	})

	runCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go hub.Run(runCtx)

	return &hubEnv{
		hub:     hub,
		players: playerSvc,
		rooms:   roomMgr,
		history: repo,
		journal: journalPath,
	}
}

// seedRoom stores a two-player init room plus both player records and
// index entries, as the matchmaker would have left them.
func (e *hubEnv) seedRoom(t *testing.T, roomID string, playerIDs ...string) *rooms.Room {
	t.Helper()
	ctx := context.Background()
	scramble, _ := cube.Scramble(20, newTestRand())
	room := &rooms.Room{
		ID:           roomID,
		Players:      playerIDs,
		Variant:      "3x3 cube",
		GameState:    rooms.GameStateInit,
		InitialState: scramble,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := e.rooms.Insert(ctx, room)
	require.NoError(t, err)
	for _, id := range playerIDs {
		require.NoError(t, e.rooms.SetPlayerRoom(ctx, id, roomID))
		require.NoError(t, e.players.Upsert(ctx, &players.Player{
			ID:            id,
			Username:      "user-" + id,
			State:         players.StatePlaying,
			Rating:        1000,
			ScrambledCube: &scramble,
		}))
	}
	return room
}

func (e *hubEnv) connect(roomID, playerID string) (*Client, *fakeConn) {
	conn := &fakeConn{}
	client := &Client{PlayerID: playerID, RoomID: roomID, Conn: conn}
	e.hub.Register(client)
	return client, conn
}

func waitForEvents(t *testing.T, c *fakeConn, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.count() >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func mustEvent(t *testing.T, typ events.EventType, value interface{}) *events.Event {
	t.Helper()
	ev, err := events.New(typ, value)
	require.NoError(t, err)
	return ev
}

func TestGameStartsWhenBothOnline(t *testing.T) {
	ctx := context.Background()
	env := newHubEnv(t)
	env.seedRoom(t, "r1", "p1", "p2")

	_, conn1 := env.connect("r1", "p1")
	// One player online does not start the game.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, conn1.count())

	_, conn2 := env.connect("r1", "p2")
	waitForEvents(t, conn1, 1)
	waitForEvents(t, conn2, 1)

	for _, conn := range []*fakeConn{conn1, conn2} {
		evs := conn.received(t)
		require.Len(t, evs, 1)
		assert.Equal(t, events.EventTypeGameStarted, evs[0].Type)
		var started events.GameStarted
		require.NoError(t, evs[0].DecodeValue(&started))
		assert.Equal(t, "r1", started.Room.ID)
		assert.Len(t, started.Participants, 2)
	}

	room, err := env.rooms.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rooms.GameStateInProgress, room.GameState)

	m, err := env.history.GetMatch(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "p1", m.Player1ID)
	assert.Equal(t, "p2", m.Player2ID)
	assert.False(t, m.Finished())
}

func TestMovesRelayInOrderToOpponentOnly(t *testing.T) {
	env := newHubEnv(t)
	env.seedRoom(t, "r1", "p1", "p2")

	client1, conn1 := env.connect("r1", "p1")
	_, conn2 := env.connect("r1", "p2")
	waitForEvents(t, conn2, 1)

	moves := []string{"U", "R'", "F", "D'", "L"}
	for _, m := range moves {
		env.hub.Dispatch(client1, mustEvent(t, events.EventTypeCubeMoved, &events.CubeMoved{
			RoomID:    "r1",
			PlayerID:  "p1",
			Move:      m,
			Timestamp: time.Now().UTC(),
		}))
	}
	waitForEvents(t, conn2, 1+len(moves))

	evs := conn2.received(t)[1:]
	require.Len(t, evs, len(moves))
	for i, ev := range evs {
		assert.Equal(t, events.EventTypeCubeMoved, ev.Type)
		var moved events.CubeMoved
		require.NoError(t, ev.DecodeValue(&moved))
		assert.Equal(t, moves[i], moved.Move)
	}

	// The sender only ever saw the start event.
	assert.Equal(t, 1, conn1.count())
}

func TestDisconnectKeepsRoomAlive(t *testing.T) {
	ctx := context.Background()
	env := newHubEnv(t)
	env.seedRoom(t, "r1", "p1", "p2")

	client1, conn1 := env.connect("r1", "p1")
	_, conn2 := env.connect("r1", "p2")
	waitForEvents(t, conn1, 1)

	env.hub.Unregister(client1)
	require.Eventually(t, func() bool {
		conn1.mu.Lock()
		defer conn1.mu.Unlock()
		return conn1.closed
	}, 2*time.Second, 5*time.Millisecond)

	room, err := env.rooms.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rooms.GameStateInProgress, room.GameState)
	assert.Equal(t, []string{"p1", "p2"}, room.Players)

	// The remaining player's relays no longer reach the gone connection.
	client2 := &Client{PlayerID: "p2", RoomID: "r1", Conn: conn2}
	env.hub.Dispatch(client2, mustEvent(t, events.EventTypeCubeMoved, &events.CubeMoved{
		RoomID: "r1", PlayerID: "p2", Move: "U",
	}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, conn1.count())
}

func TestGameFinished(t *testing.T) {
	ctx := context.Background()
	env := newHubEnv(t)
	env.seedRoom(t, "r1", "p1", "p2")

	client1, conn1 := env.connect("r1", "p1")
	_, conn2 := env.connect("r1", "p2")
	waitForEvents(t, conn1, 1)
	waitForEvents(t, conn2, 1)

	endTime := time.Now().UTC()
	env.hub.Dispatch(client1, mustEvent(t, events.EventTypeGameFinished, &events.GameFinished{
		RoomID:   "r1",
		WinnerID: "p1",
		EndTime:  endTime,
	}))
	waitForEvents(t, conn1, 2)
	waitForEvents(t, conn2, 2)

	for _, conn := range []*fakeConn{conn1, conn2} {
		evs := conn.received(t)
		assert.Equal(t, events.EventTypeGameFinished, evs[len(evs)-1].Type)
	}

	// The room and the index entries are gone.
	_, err := env.rooms.Get(ctx, "r1")
	assert.True(t, rooms.IsRoomNotFound(err))
	_, err = env.rooms.GetPlayerRoom(ctx, "p1")
	assert.True(t, store.IsNil(err))

	// The winner's record is settled.
	winner, err := env.players.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1000+history.RatingIncrement, winner.Rating)
	assert.Equal(t, 1, winner.TotalWins)
	assert.Equal(t, players.StateNotPlaying, winner.State)
	loser, err := env.players.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 1000, loser.Rating)
	assert.Equal(t, players.StateNotPlaying, loser.State)

	m, err := env.history.GetMatch(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, m.Finished())
	assert.Equal(t, "p1", m.WinnerID)
	assert.Equal(t, history.RatingIncrement, m.RatingChange)
}

func TestOutsiderCannotFinishGame(t *testing.T) {
	ctx := context.Background()
	env := newHubEnv(t)
	env.seedRoom(t, "r1", "p1", "p2")

	_, conn1 := env.connect("r1", "p1")
	_, conn2 := env.connect("r1", "p2")
	waitForEvents(t, conn1, 1)
	waitForEvents(t, conn2, 1)

	// A connection claiming the room without being a participant cannot
	// end the race.
	intruder, intruderConn := env.connect("r1", "intruder")
	env.hub.Dispatch(intruder, mustEvent(t, events.EventTypeGameFinished, &events.GameFinished{
		RoomID:   "r1",
		WinnerID: "intruder",
	}))
	waitForEvents(t, intruderConn, 1)

	evs := intruderConn.received(t)
	assert.Equal(t, events.EventTypeError, evs[len(evs)-1].Type)

	room, err := env.rooms.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rooms.GameStateInProgress, room.GameState)
	assert.Equal(t, 1, conn1.count())
	assert.Equal(t, 1, conn2.count())
}

func TestHubCallsReturnAfterShutdown(t *testing.T) {
	env := newHubEnv(t)
	env.seedRoom(t, "r1", "p1", "p2")
	client, conn := env.connect("r1", "p1")

	runCtx, cancel := context.WithCancel(context.Background())
	hub := NewHub(HubOptions{Rooms: env.rooms, Players: env.players})
	go hub.Run(runCtx)
	cancel()

	// With the run loop gone, attach/detach/dispatch still return instead
	// of blocking the connection handlers forever.
	returned := make(chan struct{})
	go func() {
		hub.Register(client)
		hub.Dispatch(client, mustEvent(t, events.EventTypeCubeMoved, &events.CubeMoved{
			RoomID: "r1", PlayerID: "p1", Move: "U",
		}))
		hub.Unregister(client)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("hub calls blocked after shutdown")
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
}

func TestUnexpectedEventGetsError(t *testing.T) {
	env := newHubEnv(t)
	env.seedRoom(t, "r1", "p1", "p2")

	client1, conn1 := env.connect("r1", "p1")
	env.hub.Dispatch(client1, mustEvent(t, events.EventTypeGameStarted, &events.GameStarted{}))
	waitForEvents(t, conn1, 1)

	evs := conn1.received(t)
	assert.Equal(t, events.EventTypeError, evs[len(evs)-1].Type)
}
