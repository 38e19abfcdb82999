package device

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"waterbot/internal/gpio"
	logx "waterbot/pkg/logx"
)

// Controller owns the live state of every registered device.
//
// Concurrency discipline: all writes to a device (manual, scheduled, timed
// revert) run inside that device's exclusive section; different devices never
// block each other. A pending revert is invalidated by bumping the device's
// generation counter under the lock, so a replaced or cancelled timer that
// has already fired observes a stale generation and does nothing.
type Controller struct {
	log  logx.Logger
	port gpio.Port

	devs  map[string]*deviceState
	names []string
}

type deviceState struct {
	name string
	pin  int

	mu     sync.Mutex
	on     bool
	revert *time.Timer
	gen    uint64
}

// DeviceStatus is one device's logical state as last successfully written.
type DeviceStatus struct {
	Name string
	On   bool
}

// DeviceResult reports a per-device outcome of an all-devices operation.
type DeviceResult struct {
	Name string
	Err  error
}

func NewController(reg *Registry, port gpio.Port, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Controller{
		log:   log,
		port:  port,
		devs:  make(map[string]*deviceState, len(reg.Names())),
		names: reg.Names(),
	}
	for _, name := range reg.Names() {
		d, _ := reg.Resolve(name)
		c.devs[name] = &deviceState{name: d.Name, pin: d.Pin}
	}
	return c
}

func (c *Controller) resolve(name string) (*deviceState, error) {
	// The registry already normalized names; mirror its lookup rules.
	d, ok := c.devs[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return d, nil
}

// TurnOn switches a device on and cancels any pending timed revert.
// A manual action always wins over a pending timer.
func (c *Controller) TurnOn(name string) error { return c.set(name, true) }

// TurnOff switches a device off and cancels any pending timed revert.
func (c *Controller) TurnOff(name string) error { return c.set(name, false) }

func (c *Controller) set(name string, on bool) error {
	st, err := c.resolve(name)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	c.cancelRevertLocked(st)
	if err := c.writeLocked(st, on); err != nil {
		return err
	}
	c.log.Info("device switched", logx.String("device", st.name), logx.Bool("on", on))
	return nil
}

// TurnOnFor switches a device on, then reverts it to off after d.
// A new timed action replaces any pending one (last writer wins); the old
// timer is invalidated before the new one is armed.
func (c *Controller) TurnOnFor(name string, d time.Duration) error {
	return c.setFor(name, true, d)
}

// TurnOffFor switches a device off, then reverts it to on after d.
func (c *Controller) TurnOffFor(name string, d time.Duration) error {
	return c.setFor(name, false, d)
}

func (c *Controller) setFor(name string, on bool, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidDuration, d)
	}
	st, err := c.resolve(name)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	c.cancelRevertLocked(st)
	if err := c.writeLocked(st, on); err != nil {
		return err
	}
	gen := st.gen
	st.revert = time.AfterFunc(d, func() { c.runRevert(st, !on, gen) })
	c.log.Info("device switched with revert",
		logx.String("device", st.name),
		logx.Bool("on", on),
		logx.Duration("after", d))
	return nil
}

func (c *Controller) runRevert(st *deviceState, on bool, gen uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gen != gen {
		// Replaced or cancelled after this timer fired but before it ran.
		return
	}
	st.revert = nil
	st.gen++
	if err := c.writeLocked(st, on); err != nil {
		c.log.Warn("timed revert failed", logx.String("device", st.name), logx.Err(err))
		return
	}
	c.log.Info("timed revert applied", logx.String("device", st.name), logx.Bool("on", on))
}

// writeLocked performs the output write and commits logical state only on
// success. Writing the level a device already has is skipped at the output
// layer.
func (c *Controller) writeLocked(st *deviceState, on bool) error {
	if st.on == on {
		return nil
	}
	if err := c.port.Write(st.pin, on); err != nil {
		return &ActuationError{Device: st.name, Err: err}
	}
	st.on = on
	return nil
}

func (c *Controller) cancelRevertLocked(st *deviceState) {
	st.gen++
	if st.revert != nil {
		st.revert.Stop()
		st.revert = nil
	}
}

// Status returns a device's logical state as of the last completed write.
func (c *Controller) Status(name string) (bool, error) {
	st, err := c.resolve(name)
	if err != nil {
		return false, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.on, nil
}

// StatusAll returns every device's state, ordered by name.
func (c *Controller) StatusAll() []DeviceStatus {
	out := make([]DeviceStatus, 0, len(c.names))
	for _, name := range c.names {
		st := c.devs[name]
		st.mu.Lock()
		out = append(out, DeviceStatus{Name: name, On: st.on})
		st.mu.Unlock()
	}
	return out
}

// TurnAllOn applies TurnOn to every device. Failures are reported per device
// and do not stop the remaining devices from being actuated.
func (c *Controller) TurnAllOn() []DeviceResult { return c.setAll(true) }

// TurnAllOff applies TurnOff to every device.
func (c *Controller) TurnAllOff() []DeviceResult { return c.setAll(false) }

func (c *Controller) setAll(on bool) []DeviceResult {
	out := make([]DeviceResult, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, DeviceResult{Name: name, Err: c.set(name, on)})
	}
	return out
}

// CancelTimers cancels all pending timed reverts without firing them.
// Used on shutdown; in-flight exclusive sections complete normally.
func (c *Controller) CancelTimers() {
	for _, name := range c.names {
		st := c.devs[name]
		st.mu.Lock()
		c.cancelRevertLocked(st)
		st.mu.Unlock()
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
