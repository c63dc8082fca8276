package config

// Config is the whole process configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Credentials may be left out of the file and supplied through the
// environment instead (see ApplyEnv).
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Practicum PracticumConfig `json:"practicum"`
	Poll      PollConfig      `json:"poll"`
	Notifier  NotifierConfig  `json:"notifier"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	// ThreadID targets a forum topic inside ChatID. 0 means the main thread.
	ThreadID int `json:"thread_id,omitempty"`
	// PollTimeout is the long-poll timeout used for inbound commands.
	PollTimeout string `json:"poll_timeout"`
	// Commands enables the inbound listener (/status). Omitted means enabled.
	Commands *bool `json:"commands,omitempty"`
}

// CommandsEnabled reports whether the inbound listener should run.
func (t TelegramConfig) CommandsEnabled() bool {
	return t.Commands == nil || *t.Commands
}

type PracticumConfig struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint,omitempty"`
	Timeout  string `json:"timeout"`
}

// PollConfig controls the poll loop.
//
// Interval accepts a duration ("10m"), HH:MM ("00:10") or a cron
// expression ("*/10 * * * *", "@hourly").
type PollConfig struct {
	Interval     string `json:"interval"`
	NotifyPolicy string `json:"notify_policy"`
	// Timezone for cron intervals. Empty means local time.
	Timezone string `json:"timezone,omitempty"`
}

// NotifierConfig controls outbound delivery to the chat.
//
// Defaults (when fields are omitted/zero):
//   - rate_per_sec: 1
//   - send_timeout: "10s"
//   - retry_max: 0 (no retries)
//   - retry_base: "1s"
//   - retry_max_delay: "30s"
//   - history_size: 50
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec"`
	SendTimeout   string `json:"send_timeout"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	HistorySize   int    `json:"history_size"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns the configuration used when no file is given. File values
// are decoded on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{PollTimeout: "10s"},
		Practicum: PracticumConfig{
			Timeout: "30s",
		},
		Poll: PollConfig{
			Interval:     "600s",
			NotifyPolicy: "collection",
		},
		Notifier: NotifierConfig{
			RatePerSec:    1,
			SendTimeout:   "10s",
			RetryBase:     "1s",
			RetryMaxDelay: "30s",
			HistorySize:   50,
		},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}
