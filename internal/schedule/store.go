package schedule

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"waterbot/internal/device"
	logx "waterbot/pkg/logx"
)

// PersistenceError reports that a mutation could not be made durable. The
// in-memory entry set has been rolled back to what was last written to disk.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist schedules (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Config selects the persistence backend.
//
// Driver values:
//   - "file": JSON record sequence, rewritten atomically (temp + rename)
//   - "sqlite": SQLite database file
//
// An empty driver defaults to "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Backend is the durable representation of the full entry set. Save rewrites
// the whole sequence; there are no partial updates.
type Backend interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
	Close() error
}

// Store holds the schedule entries plus their persisted form. Every mutation
// persists the full set before returning success; on a persistence failure
// the in-memory set keeps its last durable value. Iteration order is
// insertion order.
type Store struct {
	log logx.Logger
	reg *device.Registry

	mu      sync.Mutex
	entries []Entry
	backend Backend
}

// Open initializes the configured backend and loads the persisted entries.
func Open(cfg Config, reg *device.Registry, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		b   Backend
		err error
	)
	switch driver {
	case "", "file":
		b, err = newFileBackend(cfg.Path)
	case "sqlite", "sqlite3":
		b, err = newSQLiteBackend(cfg.Path, cfg.BusyTimeout)
	default:
		return nil, errors.New("unknown schedule store driver: " + driver)
	}
	if err != nil {
		return nil, err
	}
	return NewStore(b, reg, log)
}

// NewStore wraps a backend, loading whatever it currently holds.
func NewStore(b Backend, reg *device.Registry, log logx.Logger) (*Store, error) {
	entries, err := b.Load()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{log: log, reg: reg, entries: entries, backend: b}
	s.log.Info("schedule store loaded", logx.Int("entries", len(entries)))
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

// List returns a copy of the entries in insertion order.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ListDevice returns the entries for one device, in insertion order.
func (s *Store) ListDevice(name string) ([]Entry, error) {
	d, err := s.reg.Resolve(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Device == d.Name {
			out = append(out, e)
		}
	}
	return out, nil
}

// Add appends a trigger. Adding an entry that already exists is a no-op.
func (s *Store) Add(e Entry) error {
	e, err := s.check(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.entries {
		if cur.Key() == e.Key() {
			return nil
		}
	}
	next := append(append([]Entry(nil), s.entries...), e)
	if err := s.backend.Save(next); err != nil {
		return &PersistenceError{Op: "add", Err: err}
	}
	s.entries = next
	s.log.Info("schedule added", logx.String("entry", e.String()))
	return nil
}

// Remove deletes a trigger. Removing an entry that does not exist is a no-op.
func (s *Store) Remove(e Entry) error {
	e, err := s.check(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, cur := range s.entries {
		if cur.Key() == e.Key() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	next := make([]Entry, 0, len(s.entries)-1)
	next = append(next, s.entries[:idx]...)
	next = append(next, s.entries[idx+1:]...)
	if err := s.backend.Save(next); err != nil {
		return &PersistenceError{Op: "remove", Err: err}
	}
	s.entries = next
	s.log.Info("schedule removed", logx.String("entry", e.String()))
	return nil
}

// ReplaceAll swaps the whole entry set. Duplicates collapse to their first
// occurrence, preserving order.
func (s *Store) ReplaceAll(entries []Entry) error {
	next := make([]Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		e, err := s.check(e)
		if err != nil {
			return err
		}
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		next = append(next, e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(next); err != nil {
		return &PersistenceError{Op: "replace", Err: err}
	}
	s.entries = next
	s.log.Info("schedules replaced", logx.Int("entries", len(next)))
	return nil
}

// check validates an entry against the registry and normalizes its device
// name to the registry's canonical form.
func (s *Store) check(e Entry) (Entry, error) {
	d, err := s.reg.Resolve(e.Device)
	if err != nil {
		return Entry{}, err
	}
	if e.Action != ActionOn && e.Action != ActionOff {
		return Entry{}, fmt.Errorf("invalid action %q (want on or off)", e.Action)
	}
	if !e.At.Valid() {
		return Entry{}, fmt.Errorf("%w: %s", ErrInvalidTime, e.At)
	}
	e.Device = d.Name
	return e, nil
}
