package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuberace/cuberace/pkg/matchmaking"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
	"github.com/cuberace/cuberace/pkg/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *rooms.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(store.RedisStoreOptions{Addr: mr.Addr()})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
	})

	playerSvc := players.NewService(s)
	roomMgr := rooms.NewManager(s)
	matchmaker := matchmaking.NewMatchmaker(matchmaking.MatchmakerOptions{
		Store:   s,
		Players: playerSvc,
		Rooms:   roomMgr,
	})
	srv := NewServer(ServerOptions{Matchmaker: matchmaker, Rooms: roomMgr})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, roomMgr
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestMatchmakeStartAndPoll(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/matchmake/start", map[string]interface{}{
		"variant": "3x3 cube",
		"player":  &players.Player{ID: "p1", Username: "alice"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first matchmaking.Result
	decodeBody(t, resp, &first)
	assert.True(t, first.Queued)
	require.NotNil(t, first.Room)

	resp = postJSON(t, ts.URL+"/matchmake/start", map[string]interface{}{
		"variant": "3x3 cube",
		"player":  &players.Player{ID: "p2", Username: "bob"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second matchmaking.Result
	decodeBody(t, resp, &second)
	assert.False(t, second.Queued)
	assert.Equal(t, first.Room.ID, second.Room.ID)

	resp, err := http.Get(fmt.Sprintf("%s/matchmake/poll?playerId=p1", ts.URL))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var poll matchmaking.PollResult
	decodeBody(t, resp, &poll)
	assert.Equal(t, matchmaking.StatusMatched, poll.Status)
	assert.Equal(t, first.Room.ID, poll.Room.ID)
}

func TestMatchmakeStartRejectsRepeat(t *testing.T) {
	ts, _ := newTestServer(t)

	body := map[string]interface{}{
		"variant": "3x3 cube",
		"player":  &players.Player{ID: "p1"},
	}
	resp := postJSON(t, ts.URL+"/matchmake/start", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/matchmake/start", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestMatchmakeStartBadRequest(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/matchmake/start", map[string]interface{}{"variant": "3x3 cube"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/matchmake/poll")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMatchFriends(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/match_friends", map[string]interface{}{
		"variant":         "3x3 cube",
		"player":          &players.Player{ID: "host"},
		"isOpponentReady": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created matchmaking.FriendsResult
	decodeBody(t, resp, &created)
	assert.False(t, created.Started)

	resp = postJSON(t, ts.URL+"/match_friends", map[string]interface{}{
		"variant":          "3x3 cube",
		"player":           &players.Player{ID: "guest"},
		"opponentPlayerId": "host",
		"isOpponentReady":  true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var joined matchmaking.FriendsResult
	decodeBody(t, resp, &joined)
	assert.True(t, joined.Started)
	assert.Equal(t, created.Room.ID, joined.Room.ID)
}

func TestMatchFriendsFullRoomConflicts(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/match_friends", map[string]interface{}{
		"variant":         "3x3 cube",
		"player":          &players.Player{ID: "host"},
		"isOpponentReady": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	join := func(id string) *http.Response {
		return postJSON(t, ts.URL+"/match_friends", map[string]interface{}{
			"variant":          "3x3 cube",
			"player":           &players.Player{ID: id},
			"opponentPlayerId": "host",
			"isOpponentReady":  true,
		})
	}
	resp = join("g1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = join("g2")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestGetRoom(t *testing.T) {
	ts, roomMgr := newTestServer(t)
	ctx := context.Background()

	resp, err := http.Get(ts.URL + "/room/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	_, err = roomMgr.Insert(ctx, &rooms.Room{ID: "r1", Players: []string{"p1"}, GameState: rooms.GameStateInit})
	require.NoError(t, err)
	resp, err = http.Get(ts.URL + "/room/r1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var room rooms.Room
	decodeBody(t, resp, &room)
	assert.Equal(t, "r1", room.ID)
}

func TestRemovePlayerAndDeleteRoom(t *testing.T) {
	ts, roomMgr := newTestServer(t)
	ctx := context.Background()

	_, err := roomMgr.Insert(ctx, &rooms.Room{ID: "r1", Players: []string{"p1", "p2"}})
	require.NoError(t, err)
	require.NoError(t, roomMgr.SetPlayerRoom(ctx, "p1", "r1"))
	require.NoError(t, roomMgr.SetPlayerRoom(ctx, "p2", "r1"))

	resp := postJSON(t, ts.URL+"/remove_player", map[string]string{"playerId": "p1", "roomId": "r1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var removed map[string]bool
	decodeBody(t, resp, &removed)
	assert.True(t, removed["removed"])

	// Removing again reports false.
	resp = postJSON(t, ts.URL+"/remove_player", map[string]string{"playerId": "p1", "roomId": "r1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &removed)
	assert.False(t, removed["removed"])

	resp = postJSON(t, ts.URL+"/delete_game_room", map[string]string{"roomId": "r1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleted map[string]bool
	decodeBody(t, resp, &deleted)
	assert.True(t, deleted["success"])

	_, err = roomMgr.Get(ctx, "r1")
	assert.True(t, rooms.IsRoomNotFound(err))
}
