package device

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDevice reports a name that is not in the registry.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrInvalidDuration reports a non-positive timed-action duration.
	ErrInvalidDuration = errors.New("duration must be positive")
)

// ActuationError reports a failed output write for one device. The device's
// logical state is left untouched when this is returned.
type ActuationError struct {
	Device string
	Err    error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuate %s: %v", e.Device, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }
