package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"waterbot/internal/device"
	"waterbot/internal/schedule"
	logx "waterbot/pkg/logx"
)

// Facade is the single surface the command layer drives. It executes one
// structured action per call and returns a human-readable reply plus a
// success flag; recoverable errors become replies, never panics or silence.
type Facade struct {
	log    logx.Logger
	reg    *device.Registry
	ctrl   *device.Controller
	store  *schedule.Store
	engine *schedule.Engine

	// defaultTimeout backs "on <device>" with no explicit duration.
	defaultTimeout time.Duration

	now func() time.Time // test hook
}

// Result is the outcome of one executed action.
type Result struct {
	Text string
	OK   bool
}

func NewFacade(
	reg *device.Registry,
	ctrl *device.Controller,
	store *schedule.Store,
	engine *schedule.Engine,
	defaultTimeout time.Duration,
	log logx.Logger,
) *Facade {
	if log.IsZero() {
		log = logx.Nop()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = time.Hour
	}
	return &Facade{
		log:            log,
		reg:            reg,
		ctrl:           ctrl,
		store:          store,
		engine:         engine,
		defaultTimeout: defaultTimeout,
		now:            time.Now,
	}
}

// Execute runs one action. The context is accepted for symmetry with the
// transport layer; no operation here blocks on network I/O.
func (f *Facade) Execute(ctx context.Context, a Action) Result {
	_ = ctx
	switch a.Kind {
	case KindStatus:
		return f.status()
	case KindTime:
		now := f.now().In(f.engine.Location())
		return ok("🕐 %s", now.Format("Mon 2006-01-02 15:04:05 MST"))
	case KindTurnOn:
		if err := f.ctrl.TurnOn(a.Device); err != nil {
			return fail(err)
		}
		return ok("💧 %s turned ON", a.Device)
	case KindTurnOff:
		if err := f.ctrl.TurnOff(a.Device); err != nil {
			return fail(err)
		}
		return ok("🛑 %s turned OFF", a.Device)
	case KindTurnOnFor:
		d := a.Duration
		if !a.HasDuration {
			d = f.defaultTimeout
		}
		if err := f.ctrl.TurnOnFor(a.Device, d); err != nil {
			return fail(err)
		}
		return ok("💧 %s turned ON for %s", a.Device, formatDuration(d))
	case KindTurnOffFor:
		d := a.Duration
		if !a.HasDuration {
			d = f.defaultTimeout
		}
		if err := f.ctrl.TurnOffFor(a.Device, d); err != nil {
			return fail(err)
		}
		return ok("🛑 %s turned OFF for %s", a.Device, formatDuration(d))
	case KindTurnAllOn:
		return f.allResult("ON", f.ctrl.TurnAllOn())
	case KindTurnAllOff:
		return f.allResult("OFF", f.ctrl.TurnAllOff())
	case KindAddSchedule:
		entry := schedule.Entry{Device: a.Device, Action: a.Sched, At: a.At}
		if err := f.store.Add(entry); err != nil {
			return fail(err)
		}
		next := f.engine.NextRun(entry, f.now())
		return ok("📅 scheduled %s %s at %s (next run %s)",
			a.Device, a.Sched, a.At, next.Format("Mon 15:04"))
	case KindRemoveSchedule:
		entry := schedule.Entry{Device: a.Device, Action: a.Sched, At: a.At}
		if err := f.store.Remove(entry); err != nil {
			return fail(err)
		}
		return ok("🗑 unscheduled %s %s at %s", a.Device, a.Sched, a.At)
	case KindListSchedules:
		return f.listSchedules(f.store.List())
	case KindDeviceSchedules:
		entries, err := f.store.ListDevice(a.Device)
		if err != nil {
			return fail(err)
		}
		return f.listSchedules(entries)
	default:
		return Result{Text: helpText(f.reg.Names()), OK: true}
	}
}

func (f *Facade) status() Result {
	var b strings.Builder
	b.WriteString("Device status:\n")
	for _, st := range f.ctrl.StatusAll() {
		state := "OFF"
		if st.On {
			state = "ON"
		}
		fmt.Fprintf(&b, "• %s: %s\n", st.Name, state)
	}
	return Result{Text: strings.TrimRight(b.String(), "\n"), OK: true}
}

func (f *Facade) allResult(state string, results []device.DeviceResult) Result {
	var b strings.Builder
	allOK := true
	for _, r := range results {
		if r.Err != nil {
			allOK = false
			fmt.Fprintf(&b, "• %s: failed: %v\n", r.Name, r.Err)
		} else {
			fmt.Fprintf(&b, "• %s: %s\n", r.Name, state)
		}
	}
	head := fmt.Sprintf("All devices %s:\n", state)
	if !allOK {
		head = fmt.Sprintf("All devices %s (with failures):\n", state)
	}
	return Result{Text: head + strings.TrimRight(b.String(), "\n"), OK: allOK}
}

func (f *Facade) listSchedules(entries []schedule.Entry) Result {
	if len(entries) == 0 {
		return Result{Text: "No schedules configured.", OK: true}
	}
	now := f.now()
	type row struct {
		entry schedule.Entry
		next  time.Time
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{entry: e, next: f.engine.NextRun(e, now)})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].next.Before(rows[j].next) })

	var b strings.Builder
	b.WriteString("Schedules:\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "• %s %s at %s (next %s)\n",
			r.entry.Device, r.entry.Action, r.entry.At, r.next.Format("Mon 15:04"))
	}
	return Result{Text: strings.TrimRight(b.String(), "\n"), OK: true}
}

func ok(format string, args ...any) Result {
	return Result{Text: fmt.Sprintf(format, args...), OK: true}
}

func fail(err error) Result {
	return Result{Text: "⚠️ " + err.Error(), OK: false}
}

func formatDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return d.String()
}

func helpText(devices []string) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("• status — show all device states\n")
	b.WriteString("• on <device> [minutes] — turn on, auto-off after timeout\n")
	b.WriteString("• off <device> [minutes] — turn off (with minutes: auto-on after)\n")
	b.WriteString("• on all / off all — switch every device\n")
	b.WriteString("• schedule <device> on|off HH:MM — add daily trigger\n")
	b.WriteString("• unschedule <device> on|off HH:MM — remove daily trigger\n")
	b.WriteString("• schedules — list all triggers\n")
	b.WriteString("• schedule for <device> — list one device's triggers\n")
	b.WriteString("• time — current controller time\n")
	if len(devices) > 0 {
		b.WriteString("Devices: " + strings.Join(devices, ", "))
	}
	return b.String()
}
