// Package history records finished matches and the rating change they
// carry. Recording is best-effort from the gateway's point of view; a
// history failure never aborts a running race.
package history

import (
	"context"
	"time"
)

// RatingIncrement is the rating change applied to the winner of a match.
const RatingIncrement = 8

// Match is one recorded race. WinnerID and EndedAt are zero until the
// match finishes.
type Match struct {
	RoomID       string
	Player1ID    string
	Player2ID    string
	Variant      string
	StartedAt    time.Time
	WinnerID     string
	EndedAt      time.Time
	RatingChange int
}

// Finished reports whether the match has been completed.
func (m *Match) Finished() bool {
	return m.WinnerID != ""
}

type Repository interface {
	Close(ctx context.Context) error
	InsertMatch(ctx context.Context, m *Match) error
	FinishMatch(ctx context.Context, roomID, winnerID string, endedAt time.Time) error
	GetMatch(ctx context.Context, roomID string) (*Match, error)
}

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}
