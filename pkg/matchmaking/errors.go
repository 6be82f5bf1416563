package matchmaking

import (
	"errors"
	"fmt"
)

// ErrAlreadyMatched is returned when a player who already has a live room
// asks to be matched again.
type ErrAlreadyMatched struct {
	PlayerID string
	RoomID   string
}

func (e *ErrAlreadyMatched) Error() string {
	return fmt.Sprintf("player %s is already matched in room %s", e.PlayerID, e.RoomID)
}

// IsAlreadyMatched reports whether err is an ErrAlreadyMatched.
func IsAlreadyMatched(err error) bool {
	var e *ErrAlreadyMatched
	return errors.As(err, &e)
}

// ErrRoomFull is returned when a player asks to join a room that already
// has its full complement of participants.
type ErrRoomFull struct {
	RoomID string
}

func (e *ErrRoomFull) Error() string {
	return fmt.Sprintf("room %s is full", e.RoomID)
}

// IsRoomFull reports whether err is an ErrRoomFull.
func IsRoomFull(err error) bool {
	var e *ErrRoomFull
	return errors.As(err, &e)
}
