//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPort drives actual hardware through the Linux GPIO character device.
type RealPort struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealPort requests every pin as an output, driven low.
func NewRealPort(chipName string, pins []int) (*RealPort, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	lines := make(map[int]*gpiocdev.Line, len(pins))
	for _, pin := range pins {
		if _, ok := lines[pin]; ok {
			continue
		}
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			for _, l := range lines {
				_ = l.Close()
			}
			_ = chip.Close()
			return nil, fmt.Errorf("request pin %d: %w", pin, err)
		}
		lines[pin] = line
	}

	return &RealPort{chip: chip, lines: lines}, nil
}

func (p *RealPort) Write(pin int, on bool) error {
	line, ok := p.lines[pin]
	if !ok {
		return fmt.Errorf("%w: pin %d not requested", ErrIO, pin)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("%w: set pin %d: %v", ErrIO, pin, err)
	}
	return nil
}

func (p *RealPort) Read(pin int) (bool, error) {
	line, ok := p.lines[pin]
	if !ok {
		return false, fmt.Errorf("%w: pin %d not requested", ErrIO, pin)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("%w: read pin %d: %v", ErrIO, pin, err)
	}
	return v != 0, nil
}

// Close drives every pin low and releases the chip, so external hardware is
// left in a safe state across restarts.
func (p *RealPort) Close() error {
	var errs []error
	for pin, line := range p.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("lower pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
