package cube

import "fmt"

// ErrInvalidMove is returned when a move names an unknown face or uses
// notation the engine does not support.
type ErrInvalidMove struct {
	Notation string
}

func (e *ErrInvalidMove) Error() string {
	return fmt.Sprintf("invalid move: %q", e.Notation)
}

// IsInvalidMove reports whether err is an ErrInvalidMove.
func IsInvalidMove(err error) bool {
	_, ok := err.(*ErrInvalidMove)
	return ok
}

// ErrInvalidState is returned when a cube state violates the engine's
// input contract (color codes outside the palette).
type ErrInvalidState struct {
	Reason string
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("invalid cube state: %s", e.Reason)
}

// IsInvalidState reports whether err is an ErrInvalidState.
func IsInvalidState(err error) bool {
	_, ok := err.(*ErrInvalidState)
	return ok
}
