package store

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by data operations before Connect succeeds
// or after Close.
var ErrNotConnected = errors.New("store: not connected")

// ErrConnectionExhausted is returned by Connect when the retry budget
// runs out without reaching the server.
var ErrConnectionExhausted = errors.New("store: connection retries exhausted")

// ErrNil is returned when a key or field does not exist.
var ErrNil = errors.New("store: nil")

// IsNotConnected reports whether err is ErrNotConnected.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsConnectionExhausted reports whether err is ErrConnectionExhausted.
func IsConnectionExhausted(err error) bool {
	return errors.Is(err, ErrConnectionExhausted)
}

// IsNil reports whether err is ErrNil.
func IsNil(err error) bool {
	return errors.Is(err, ErrNil)
}

// ErrLockNotAcquired is returned by WithLock when the lock could not be
// taken within the acquire budget.
type ErrLockNotAcquired struct {
	Key string
}

func (e *ErrLockNotAcquired) Error() string {
	return fmt.Sprintf("lock not acquired: %s", e.Key)
}

// IsLockNotAcquired reports whether err is an ErrLockNotAcquired.
func IsLockNotAcquired(err error) bool {
	var e *ErrLockNotAcquired
	return errors.As(err, &e)
}
