// Package device owns the device registry and the actuation controller:
// per-device on/off state, timed reverts, and the GPIO write path.
package device

import (
	"fmt"
	"sort"
	"strings"
)

// Device binds a name to its output pin.
type Device struct {
	Name string
	Pin  int
}

// Registry is the static device table, read-only after Load and therefore
// safe for unsynchronized concurrent reads.
type Registry struct {
	devices map[string]Device
	names   []string
}

// LoadRegistry validates the configured name→pin map. Names are
// case-normalized; an empty name, a duplicate after normalization, or a
// negative pin is a configuration error and fatal at startup.
func LoadRegistry(pins map[string]int) (*Registry, error) {
	if len(pins) == 0 {
		return nil, fmt.Errorf("no devices configured")
	}
	devices := make(map[string]Device, len(pins))
	for rawName, pin := range pins {
		name := strings.ToLower(strings.TrimSpace(rawName))
		if name == "" {
			return nil, fmt.Errorf("device with empty name (pin %d)", pin)
		}
		if pin < 0 {
			return nil, fmt.Errorf("device %q: invalid gpio pin %d", name, pin)
		}
		if _, dup := devices[name]; dup {
			return nil, fmt.Errorf("duplicate device name %q", name)
		}
		devices[name] = Device{Name: name, Pin: pin}
	}

	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{devices: devices, names: names}, nil
}

// Resolve looks a device up by name, case-insensitively.
func (r *Registry) Resolve(name string) (Device, error) {
	d, ok := r.devices[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrUnknownDevice, strings.TrimSpace(name))
	}
	return d, nil
}

// Names returns all device names, sorted.
func (r *Registry) Names() []string { return r.names }

// Pins returns the output pins of all devices.
func (r *Registry) Pins() []int {
	pins := make([]int, 0, len(r.names))
	for _, name := range r.names {
		pins = append(pins, r.devices[name].Pin)
	}
	return pins
}
