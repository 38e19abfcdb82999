// Package bot translates operator commands into calls on the device
// controller and the schedule store, and formats the replies.
package bot

import (
	"time"

	"waterbot/internal/schedule"
)

// Kind enumerates the closed set of structured actions the facade executes.
type Kind int

const (
	KindHelp Kind = iota
	KindStatus
	KindTime
	KindTurnOn
	KindTurnOff
	KindTurnOnFor
	KindTurnOffFor
	KindTurnAllOn
	KindTurnAllOff
	KindAddSchedule
	KindRemoveSchedule
	KindListSchedules
	KindDeviceSchedules
)

// Action is one structured command. Which fields are meaningful depends on
// Kind; HasDuration distinguishes an omitted duration (facade applies the
// configured default) from an explicit one.
type Action struct {
	Kind        Kind
	Device      string
	Duration    time.Duration
	HasDuration bool
	Sched       schedule.Action
	At          schedule.TimeOfDay
}
