package gpio

import (
	"fmt"
	"sync"

	logx "waterbot/pkg/logx"
)

// FakePort is an in-memory Port used for emulation mode and tests.
type FakePort struct {
	mu     sync.Mutex
	levels map[int]bool
	closed bool
	log    logx.Logger

	// WriteError, if set, is returned by Write for pins in FailPins
	// (or for all pins when FailPins is empty).
	WriteError error
	FailPins   map[int]bool

	writes int
}

// NewFakePort creates a FakePort; log may be the zero Logger.
func NewFakePort(log logx.Logger) *FakePort {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &FakePort{levels: map[int]bool{}, log: log}
}

func (f *FakePort) Write(pin int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil && (len(f.FailPins) == 0 || f.FailPins[pin]) {
		return fmt.Errorf("%w: pin %d: %v", ErrIO, pin, f.WriteError)
	}
	f.levels[pin] = on
	f.writes++
	f.log.Info("emulated gpio write", logx.Int("pin", pin), logx.Bool("on", on))
	return nil
}

func (f *FakePort) Read(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin], nil
}

func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pin := range f.levels {
		f.levels[pin] = false
	}
	f.closed = true
	return nil
}

// Level reports the current driven level of a pin (test helper).
func (f *FakePort) Level(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// Writes reports how many successful writes happened (test helper).
func (f *FakePort) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Closed reports whether Close was called (test helper).
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
