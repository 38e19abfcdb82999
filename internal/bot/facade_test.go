package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"waterbot/internal/device"
	"waterbot/internal/gpio"
	"waterbot/internal/schedule"
	logx "waterbot/pkg/logx"
)

func newTestFacade(t *testing.T) (*Facade, *gpio.FakePort, *schedule.Store) {
	t.Helper()
	reg, err := device.LoadRegistry(map[string]int{"light": 17, "pump": 27})
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	port := gpio.NewFakePort(logx.Nop())
	ctrl := device.NewController(reg, port, logx.Nop())

	store, err := schedule.Open(schedule.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "schedules.json"),
	}, reg, logx.Nop())
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := schedule.NewEngine(schedule.EngineConfig{Timezone: "UTC"}, ctrl, store, logx.Nop())
	f := NewFacade(reg, ctrl, store, eng, time.Hour, logx.Nop())
	f.now = func() time.Time { return time.Date(2026, 8, 30, 5, 0, 0, 0, time.UTC) }
	return f, port, store
}

func exec(t *testing.T, f *Facade, text string) Result {
	t.Helper()
	return f.Execute(context.Background(), Parse(text))
}

func TestOnCommandUsesDefaultTimeout(t *testing.T) {
	f, port, _ := newTestFacade(t)

	res := exec(t, f, "on pump")
	if !res.OK {
		t.Fatalf("on pump failed: %s", res.Text)
	}
	if !strings.Contains(res.Text, "pump") || !strings.Contains(res.Text, "60 min") {
		t.Fatalf("reply should name the device and the default timeout, got %q", res.Text)
	}
	if !port.Level(27) {
		t.Fatalf("pump should be on")
	}
}

func TestOffCommandIsPermanent(t *testing.T) {
	f, port, _ := newTestFacade(t)

	exec(t, f, "on light 5")
	res := exec(t, f, "off light")
	if !res.OK {
		t.Fatalf("off light failed: %s", res.Text)
	}
	if port.Level(17) {
		t.Fatalf("light should be off")
	}
	if strings.Contains(res.Text, "min") {
		t.Fatalf("plain off must not mention a timeout, got %q", res.Text)
	}
}

func TestStatusListsAllDevices(t *testing.T) {
	f, _, _ := newTestFacade(t)

	exec(t, f, "on pump")
	res := exec(t, f, "status")
	if !res.OK {
		t.Fatalf("status failed: %s", res.Text)
	}
	if !strings.Contains(res.Text, "pump: ON") || !strings.Contains(res.Text, "light: OFF") {
		t.Fatalf("unexpected status reply: %q", res.Text)
	}
}

func TestUnknownDeviceBecomesReply(t *testing.T) {
	f, _, _ := newTestFacade(t)

	res := exec(t, f, "on heater")
	if res.OK {
		t.Fatalf("expected failure for unknown device")
	}
	if !strings.Contains(res.Text, "heater") {
		t.Fatalf("reply should name the unknown device, got %q", res.Text)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	f, _, store := newTestFacade(t)

	res := exec(t, f, "schedule pump on 06:30")
	if !res.OK {
		t.Fatalf("schedule add failed: %s", res.Text)
	}
	// Fixed "now" is 05:00 UTC, so the next run is the same day.
	if !strings.Contains(res.Text, "06:30") {
		t.Fatalf("reply should include the trigger time, got %q", res.Text)
	}
	if got := store.List(); len(got) != 1 {
		t.Fatalf("expected 1 stored entry, got %v", got)
	}

	res = exec(t, f, "schedules")
	if !res.OK || !strings.Contains(res.Text, "pump on at 06:30") {
		t.Fatalf("unexpected list reply: %q", res.Text)
	}

	res = exec(t, f, "schedules for pump")
	if !res.OK || !strings.Contains(res.Text, "06:30") {
		t.Fatalf("unexpected per-device reply: %q", res.Text)
	}

	res = exec(t, f, "unschedule pump on 06:30")
	if !res.OK {
		t.Fatalf("unschedule failed: %s", res.Text)
	}
	if got := store.List(); len(got) != 0 {
		t.Fatalf("expected empty store, got %v", got)
	}

	res = exec(t, f, "schedules")
	if !res.OK || !strings.Contains(res.Text, "No schedules") {
		t.Fatalf("unexpected empty list reply: %q", res.Text)
	}
}

func TestAllDevicesWithPartialFailure(t *testing.T) {
	f, port, _ := newTestFacade(t)
	port.WriteError = gpio.ErrIO
	port.FailPins = map[int]bool{27: true}

	res := exec(t, f, "on all")
	if res.OK {
		t.Fatalf("partial failure must report not-OK")
	}
	if !strings.Contains(res.Text, "with failures") {
		t.Fatalf("reply should flag failures, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "light: ON") {
		t.Fatalf("reply should show the successful device, got %q", res.Text)
	}
	if !port.Level(17) {
		t.Fatalf("light should still be actuated")
	}
}

func TestHelpListsDevices(t *testing.T) {
	f, _, _ := newTestFacade(t)

	res := exec(t, f, "anything unparseable")
	if !res.OK {
		t.Fatalf("help must be OK")
	}
	if !strings.Contains(res.Text, "Commands:") || !strings.Contains(res.Text, "light, pump") {
		t.Fatalf("unexpected help text: %q", res.Text)
	}
}

func TestTimeCommand(t *testing.T) {
	f, _, _ := newTestFacade(t)

	res := exec(t, f, "time")
	if !res.OK || !strings.Contains(res.Text, "2026-08-30") {
		t.Fatalf("unexpected time reply: %q", res.Text)
	}
}
