// Package schedule holds the durable daily-trigger store and the polling
// engine that fires due triggers against the actuation controller.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is what a trigger does to its device.
type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
)

func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return ActionOn, nil
	case "off":
		return ActionOff, nil
	default:
		return "", fmt.Errorf("invalid action %q (want on or off)", s)
	}
}

// ErrInvalidTime reports a time of day outside 00:00–23:59.
var ErrInvalidTime = errors.New("invalid time of day, expected HH:MM")

// TimeOfDay is a wall-clock minute with no date component; triggers recur
// daily at this minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: bad hour in %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: bad minute in %q", ErrInvalidTime, s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Entry is one daily recurring trigger. The (device, action, time) triple is
// unique within a store; Key is the stable identifier derived from it.
type Entry struct {
	Device string    `json:"device"`
	Action Action    `json:"action"`
	At     TimeOfDay `json:"time"`
}

func (e Entry) Key() string {
	return e.Device + "|" + string(e.Action) + "|" + e.At.String()
}

// CronSpec renders the trigger as a standard 5-field daily cron spec,
// used for next-run computation.
func (e Entry) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", e.At.Minute, e.At.Hour)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s at %s", e.Device, e.Action, e.At)
}
