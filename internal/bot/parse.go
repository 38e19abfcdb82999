package bot

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"waterbot/internal/schedule"
)

// Command grammar, matched against trimmed lowercase input. Durations are
// minutes. Anything that doesn't parse falls through to help.
var (
	reScheduleFor = regexp.MustCompile(`^schedules?\s+for\s+(\w+)$`)
	reScheduleAdd = regexp.MustCompile(`^schedule\s+(\w+)\s+(on|off)\s+(\d{1,2}:\d{2})$`)
	reScheduleDel = regexp.MustCompile(`^unschedule\s+(\w+)\s+(on|off)\s+(\d{1,2}:\d{2})$`)
	reOn          = regexp.MustCompile(`^on\s+(\w+)(?:\s+(\d+))?$`)
	reOff         = regexp.MustCompile(`^off\s+(\w+)(?:\s+(\d+))?$`)
)

// Parse turns one line of operator text into a structured Action. Unknown
// input yields KindHelp; device and time validation happen downstream so the
// reply can name the exact problem.
func Parse(text string) Action {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimPrefix(text, "/")

	switch text {
	case "status":
		return Action{Kind: KindStatus}
	case "time":
		return Action{Kind: KindTime}
	case "on all":
		return Action{Kind: KindTurnAllOn}
	case "off all":
		return Action{Kind: KindTurnAllOff}
	case "schedule", "schedules":
		return Action{Kind: KindListSchedules}
	}

	if m := reScheduleFor.FindStringSubmatch(text); m != nil {
		return Action{Kind: KindDeviceSchedules, Device: m[1]}
	}
	if m := reScheduleAdd.FindStringSubmatch(text); m != nil {
		return scheduleAction(KindAddSchedule, m)
	}
	if m := reScheduleDel.FindStringSubmatch(text); m != nil {
		return scheduleAction(KindRemoveSchedule, m)
	}
	if m := reOn.FindStringSubmatch(text); m != nil {
		a := Action{Kind: KindTurnOnFor, Device: m[1]}
		if m[2] != "" {
			mins, _ := strconv.Atoi(m[2])
			a.Duration = time.Duration(mins) * time.Minute
			a.HasDuration = true
		}
		return a
	}
	if m := reOff.FindStringSubmatch(text); m != nil {
		// A plain "off <dev>" is permanent; with minutes it reverts to on.
		if m[2] == "" {
			return Action{Kind: KindTurnOff, Device: m[1]}
		}
		mins, _ := strconv.Atoi(m[2])
		return Action{
			Kind:        KindTurnOffFor,
			Device:      m[1],
			Duration:    time.Duration(mins) * time.Minute,
			HasDuration: true,
		}
	}

	return Action{Kind: KindHelp}
}

func scheduleAction(kind Kind, m []string) Action {
	at, err := schedule.ParseTimeOfDay(m[3])
	if err != nil {
		// Out-of-range time reads as an unknown command, like bad syntax.
		return Action{Kind: KindHelp}
	}
	act, _ := schedule.ParseAction(m[2])
	return Action{Kind: kind, Device: m[1], Sched: act, At: at}
}
