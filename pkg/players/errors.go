package players

import (
	"errors"
	"fmt"
)

// ErrPlayerNotFound is returned when a player record does not exist.
type ErrPlayerNotFound struct {
	ID string
}

func (e *ErrPlayerNotFound) Error() string {
	return fmt.Sprintf("player not found: %s", e.ID)
}

// IsPlayerNotFound reports whether err is an ErrPlayerNotFound.
func IsPlayerNotFound(err error) bool {
	var e *ErrPlayerNotFound
	return errors.As(err, &e)
}
