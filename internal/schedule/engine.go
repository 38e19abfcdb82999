package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"waterbot/internal/device"
	"waterbot/internal/runtime/supervisor"
	logx "waterbot/pkg/logx"
)

const minuteStamp = "2006-01-02 15:04"

// EngineConfig controls the polling engine.
type EngineConfig struct {
	Tick     time.Duration // poll cadence; default 60s, must stay <= 1m
	Timezone string        // IANA TZ; empty means local time
}

// Engine polls the store on a fixed tick and fires entries whose time of day
// matches the current minute, at most once per minute per entry.
//
// Fire records live in memory only: a trigger whose time passed while the
// process was down is not caught up on restart, it simply waits for its next
// daily occurrence.
type Engine struct {
	log   logx.Logger
	ctrl  *device.Controller
	store *Store

	tick   time.Duration
	loc    *time.Location
	parser cron.Parser

	// notify, when set, reports each fired trigger to the operator.
	// Best-effort; must never block the tick loop.
	notify func(text string)

	mu      sync.Mutex
	fired   map[string]string // entry key -> minute stamp of last fire
	running bool
	sup     *supervisor.Supervisor

	now func() time.Time // test hook
}

func NewEngine(cfg EngineConfig, ctrl *device.Controller, store *Store, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	tick := cfg.Tick
	if tick <= 0 || tick > time.Minute {
		tick = time.Minute
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Warn("invalid timezone, falling back to local", logx.String("tz", tz), logx.Err(err))
		}
	}
	return &Engine{
		log:    log,
		ctrl:   ctrl,
		store:  store,
		tick:   tick,
		loc:    loc,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		fired:  map[string]string{},
		now:    time.Now,
	}
}

// SetNotifier installs the operator notification hook. Call before Start.
func (e *Engine) SetNotifier(fn func(text string)) { e.notify = fn }

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start launches the tick loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.sup = supervisor.New(ctx, supervisor.WithLogger(e.log))
	sup := e.sup
	e.mu.Unlock()

	sup.Go0("schedule.tick", func(ctx context.Context) {
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()
		e.tickOnce(e.now())
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.tickOnce(e.now())
			}
		}
	})
	e.log.Info("schedule engine started",
		logx.Duration("tick", e.tick),
		logx.String("tz", e.loc.String()))
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	sup := e.sup
	e.sup = nil
	wasRunning := e.running
	e.running = false
	e.mu.Unlock()

	if !wasRunning || sup == nil {
		return
	}
	if err := sup.Stop(ctx); err != nil {
		e.log.Warn("schedule engine stop", logx.Err(err))
	}
	e.log.Info("schedule engine stopped")
}

// tickOnce fires every entry due at now's minute that has not fired for that
// minute yet. Entries are visited in insertion order; two entries for the
// same device and minute both fire, last one wins. A failed actuation is
// logged and retried at the entry's next daily occurrence, not within the
// same tick.
func (e *Engine) tickOnce(now time.Time) {
	local := now.In(e.loc)
	stamp := local.Format(minuteStamp)
	entries := e.store.List()

	live := make(map[string]bool, len(entries))
	for _, en := range entries {
		live[en.Key()] = true
		if en.At.Hour != local.Hour() || en.At.Minute != local.Minute() {
			continue
		}

		e.mu.Lock()
		done := e.fired[en.Key()] == stamp
		if !done {
			e.fired[en.Key()] = stamp
		}
		e.mu.Unlock()
		if done {
			continue
		}

		err := e.fire(en)
		if err != nil {
			e.log.Warn("scheduled actuation failed",
				logx.String("entry", en.String()),
				logx.Err(err))
		} else {
			e.log.Info("scheduled actuation fired", logx.String("entry", en.String()))
		}
		e.report(en, err)
	}

	// Drop fire records for entries that no longer exist.
	e.mu.Lock()
	for key := range e.fired {
		if !live[key] {
			delete(e.fired, key)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) fire(en Entry) error {
	switch en.Action {
	case ActionOn:
		return e.ctrl.TurnOn(en.Device)
	case ActionOff:
		return e.ctrl.TurnOff(en.Device)
	default:
		return fmt.Errorf("invalid action %q", en.Action)
	}
}

func (e *Engine) report(en Entry, err error) {
	if e.notify == nil {
		return
	}
	var text string
	if err != nil {
		text = fmt.Sprintf("❌ schedule failed: could not turn %s %s: %v", en.Device, en.Action, err)
	} else if en.Action == ActionOn {
		text = fmt.Sprintf("💧 scheduled ON: %s (at %s)", en.Device, en.At)
	} else {
		text = fmt.Sprintf("🛑 scheduled OFF: %s (at %s)", en.Device, en.At)
	}
	// Off the tick goroutine; the notifier may hit the network.
	go e.notify(text)
}

// NextRun reports when the entry fires next: today at its time of day if that
// is still ahead, otherwise tomorrow. Reporting only, no side effects.
func (e *Engine) NextRun(en Entry, now time.Time) time.Time {
	sched, err := e.parser.Parse(en.CronSpec())
	if err != nil {
		// Entries are validated before they reach the store.
		return time.Time{}
	}
	return sched.Next(now.In(e.loc))
}

// Location exposes the engine's timezone, used when formatting next runs.
func (e *Engine) Location() *time.Location { return e.loc }
