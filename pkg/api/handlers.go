package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/matchmaking"
	"github.com/cuberace/cuberace/pkg/players"
	"github.com/cuberace/cuberace/pkg/rooms"
	"github.com/cuberace/cuberace/pkg/store"
)

type startRequest struct {
	Variant string          `json:"variant"`
	Player  *players.Player `json:"player"`
}

type friendsRequest struct {
	Player           *players.Player `json:"player"`
	OpponentPlayerID string          `json:"opponentPlayerId"`
	Variant          string          `json:"variant"`
	IsOpponentReady  bool            `json:"isOpponentReady"`
}

type removePlayerRequest struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

type deleteRoomRequest struct {
	RoomID string `json:"roomId"`
}

func (s *Server) handleMatchmakeStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Player == nil || req.Player.ID == "" || req.Variant == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.matchmaker.TryMatchOrEnqueue(r.Context(), req.Player, req.Variant)
	if err != nil {
		writeMatchmakingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMatchmakePoll(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "missing playerId")
		return
	}
	res, err := s.matchmaker.Poll(r.Context(), playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMatchFriends(w http.ResponseWriter, r *http.Request) {
	var req friendsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Player == nil || req.Player.ID == "" || req.Variant == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IsOpponentReady && req.OpponentPlayerID == "" {
		writeError(w, http.StatusBadRequest, "missing opponentPlayerId")
		return
	}
	res, err := s.matchmaker.StartFriendsMatch(r.Context(), req.Player, req.Variant, req.IsOpponentReady, req.OpponentPlayerID)
	if err != nil {
		writeMatchmakingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	room, err := s.rooms.Get(r.Context(), roomID)
	if err != nil {
		if rooms.IsRoomNotFound(err) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	var req removePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	removed, err := s.rooms.RemovePlayer(r.Context(), req.RoomID, req.PlayerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleDeleteGameRoom(w http.ResponseWriter, r *http.Request) {
	var req deleteRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.rooms.DeleteWithPlayers(r.Context(), req.RoomID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeMatchmakingError(w http.ResponseWriter, err error) {
	switch {
	case matchmaking.IsAlreadyMatched(err):
		writeError(w, http.StatusConflict, err.Error())
	case matchmaking.IsRoomFull(err):
		writeError(w, http.StatusConflict, err.Error())
	case rooms.IsRoomNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case store.IsLockNotAcquired(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
