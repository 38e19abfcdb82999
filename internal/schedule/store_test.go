package schedule

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"waterbot/internal/device"
	logx "waterbot/pkg/logx"
)

func testRegistry(t *testing.T) *device.Registry {
	t.Helper()
	reg, err := device.LoadRegistry(map[string]int{"light": 17, "pump": 27})
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	return reg
}

func openFileStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(Config{Driver: "file", Path: path}, testRegistry(t), logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.json")

	s := openFileStore(t, path)
	e1 := Entry{Device: "pump", Action: ActionOn, At: TimeOfDay{6, 30}}
	e2 := Entry{Device: "light", Action: ActionOff, At: TimeOfDay{22, 0}}
	if err := s.Add(e1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(e2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := openFileStore(t, path)
	defer s2.Close()
	got := s2.List()
	if len(got) != 2 || got[0].Key() != e1.Key() || got[1].Key() != e2.Key() {
		t.Fatalf("reload mismatch: %v", got)
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := openFileStore(t, filepath.Join(t.TempDir(), "does-not-exist.json"))
	defer s.Close()
	if got := s.List(); len(got) != 0 {
		t.Fatalf("expected empty store, got %v", got)
	}
}

func TestAddDuplicateIsNoop(t *testing.T) {
	s := openFileStore(t, filepath.Join(t.TempDir(), "schedules.json"))
	defer s.Close()

	e := Entry{Device: "pump", Action: ActionOn, At: TimeOfDay{6, 30}}
	if err := s.Add(e); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Same triple with different name casing is still the same entry.
	if err := s.Add(Entry{Device: "PUMP", Action: ActionOn, At: TimeOfDay{6, 30}}); err != nil {
		t.Fatalf("duplicate Add: %v", err)
	}
	if got := s.List(); len(got) != 1 {
		t.Fatalf("expected 1 entry, got %v", got)
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	s := openFileStore(t, filepath.Join(t.TempDir(), "schedules.json"))
	defer s.Close()

	if err := s.Remove(Entry{Device: "pump", Action: ActionOff, At: TimeOfDay{12, 0}}); err != nil {
		t.Fatalf("Remove of absent entry: %v", err)
	}
}

func TestStoreRejectsInvalidEntries(t *testing.T) {
	s := openFileStore(t, filepath.Join(t.TempDir(), "schedules.json"))
	defer s.Close()

	if err := s.Add(Entry{Device: "heater", Action: ActionOn, At: TimeOfDay{6, 0}}); !errors.Is(err, device.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if err := s.Add(Entry{Device: "pump", Action: "toggle", At: TimeOfDay{6, 0}}); err == nil {
		t.Fatalf("expected error for invalid action")
	}
	if err := s.Add(Entry{Device: "pump", Action: ActionOn, At: TimeOfDay{24, 0}}); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestListDevice(t *testing.T) {
	s := openFileStore(t, filepath.Join(t.TempDir(), "schedules.json"))
	defer s.Close()

	entries := []Entry{
		{Device: "pump", Action: ActionOn, At: TimeOfDay{6, 30}},
		{Device: "light", Action: ActionOn, At: TimeOfDay{18, 0}},
		{Device: "pump", Action: ActionOff, At: TimeOfDay{7, 0}},
	}
	for _, e := range entries {
		if err := s.Add(e); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	got, err := s.ListDevice("Pump")
	if err != nil {
		t.Fatalf("ListDevice: %v", err)
	}
	if len(got) != 2 || got[0].At != (TimeOfDay{6, 30}) || got[1].At != (TimeOfDay{7, 0}) {
		t.Fatalf("unexpected pump entries: %v", got)
	}
	if _, err := s.ListDevice("heater"); !errors.Is(err, device.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestReplaceAllDedupes(t *testing.T) {
	s := openFileStore(t, filepath.Join(t.TempDir(), "schedules.json"))
	defer s.Close()

	err := s.ReplaceAll([]Entry{
		{Device: "pump", Action: ActionOn, At: TimeOfDay{6, 30}},
		{Device: "light", Action: ActionOn, At: TimeOfDay{18, 0}},
		{Device: "pump", Action: ActionOn, At: TimeOfDay{6, 30}},
	})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	got := s.List()
	if len(got) != 2 || got[0].Device != "pump" || got[1].Device != "light" {
		t.Fatalf("unexpected entries after replace: %v", got)
	}
}

// flakyBackend fails Save on demand, to exercise the rollback path.
type flakyBackend struct {
	entries  []Entry
	failSave bool
	saves    int
}

func (b *flakyBackend) Load() ([]Entry, error) { return b.entries, nil }

func (b *flakyBackend) Save(entries []Entry) error {
	b.saves++
	if b.failSave {
		return fmt.Errorf("disk full")
	}
	b.entries = append([]Entry(nil), entries...)
	return nil
}

func (b *flakyBackend) Close() error { return nil }

func TestPersistenceFailureRollsBack(t *testing.T) {
	backend := &flakyBackend{}
	s, err := NewStore(backend, testRegistry(t), logx.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	keep := Entry{Device: "pump", Action: ActionOn, At: TimeOfDay{6, 30}}
	if err := s.Add(keep); err != nil {
		t.Fatalf("Add: %v", err)
	}

	backend.failSave = true
	err = s.Add(Entry{Device: "light", Action: ActionOn, At: TimeOfDay{18, 0}})
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Op != "add" {
		t.Fatalf("expected PersistenceError(add), got %v", err)
	}

	got := s.List()
	if len(got) != 1 || got[0].Key() != keep.Key() {
		t.Fatalf("in-memory set must match last durable state, got %v", got)
	}

	err = s.Remove(keep)
	if !errors.As(err, &perr) || perr.Op != "remove" {
		t.Fatalf("expected PersistenceError(remove), got %v", err)
	}
	if got := s.List(); len(got) != 1 {
		t.Fatalf("failed remove must not drop the entry, got %v", got)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.db")

	s, err := Open(Config{Driver: "sqlite", Path: path}, testRegistry(t), logx.Nop())
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	e1 := Entry{Device: "pump", Action: ActionOn, At: TimeOfDay{6, 30}}
	e2 := Entry{Device: "pump", Action: ActionOff, At: TimeOfDay{7, 0}}
	if err := s.Add(e1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(e2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(Config{Driver: "sqlite", Path: path}, testRegistry(t), logx.Nop())
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer s2.Close()
	got := s2.List()
	if len(got) != 2 || got[0].Key() != e1.Key() || got[1].Key() != e2.Key() {
		t.Fatalf("sqlite reload mismatch: %v", got)
	}
}
