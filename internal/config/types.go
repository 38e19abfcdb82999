package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	GPIO     GPIOConfig     `json:"gpio"`

	// Devices maps device name to BCM pin number. Immutable at runtime;
	// changing it requires a restart.
	Devices map[string]int `json:"devices"`

	Schedule ScheduleConfig `json:"schedule"`

	// DefaultTimeout is a Go duration string (e.g. "60m"). Applied when
	// "on <device>" is issued without an explicit duration.
	DefaultTimeout string `json:"default_timeout"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// AllowedChatIDs restricts which chats may drive the bot.
	// Empty allows every chat (useful for private test bots only).
	AllowedChatIDs []int64 `json:"allowed_chat_ids"`

	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards selected log lines to a chat, rate limited.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// GPIOConfig selects the output driver.
//
// Mode values:
//   - "hardware": Linux GPIO character device
//   - "emulation": in-memory port that only logs transitions
type GPIOConfig struct {
	Mode string `json:"mode"`
	Chip string `json:"chip,omitempty"` // default "gpiochip0"
}

type ScheduleConfig struct {
	Enabled bool `json:"enabled"`

	// Driver is the store backend: "file" (default) or "sqlite".
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path"`

	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`

	// Tick is the engine poll cadence, a Go duration string. Default "60s";
	// values above one minute are clamped so minute triggers cannot be missed.
	Tick string `json:"tick,omitempty"`

	// Timezone for trigger times, IANA name. Empty means local time.
	Timezone string `json:"timezone,omitempty"`
}
