// Package gpio provides binary output control with hardware abstraction.
// The real implementation drives the Linux GPIO character device; the fake
// implementation backs emulation mode and tests.
package gpio

import "errors"

// ErrIO reports an output transport failure. Concrete drivers wrap it so
// callers can classify hardware faults with errors.Is.
var ErrIO = errors.New("gpio i/o failure")

// Port sets and reads binary outputs addressed by BCM pin number.
type Port interface {
	// Write drives the pin high (on) or low (off).
	Write(pin int, on bool) error

	// Read returns the last driven level of the pin.
	Read(pin int) (bool, error)

	// Close releases GPIO resources. Pins are left low.
	Close() error
}
