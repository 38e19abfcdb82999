//go:build !linux

package gpio

import "errors"

// RealPort is not available on non-Linux platforms.
type RealPort struct{}

func NewRealPort(chipName string, pins []int) (*RealPort, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (p *RealPort) Write(pin int, on bool) error { return errors.New("gpio: not supported") }

func (p *RealPort) Read(pin int) (bool, error) { return false, errors.New("gpio: not supported") }

func (p *RealPort) Close() error { return nil }
