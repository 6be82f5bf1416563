package rooms

import (
	"errors"
	"fmt"
)

// ErrRoomNotFound is returned when a room record does not exist.
type ErrRoomNotFound struct {
	ID string
}

func (e *ErrRoomNotFound) Error() string {
	return fmt.Sprintf("room not found: %s", e.ID)
}

// IsRoomNotFound reports whether err is an ErrRoomNotFound.
func IsRoomNotFound(err error) bool {
	var e *ErrRoomNotFound
	return errors.As(err, &e)
}
