package config

// Config is the on-disk configuration (JSON or YAML). Every section is
// optional; Default() fills what a bare deployment needs and the
// environment fills credentials (see ApplyEnv).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "2h").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Feed     FeedConfig     `json:"feed"`
	Ledger   LedgerConfig   `json:"ledger"`
	Poll     PollConfig     `json:"poll"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// TelegramConfig is the message sink.
//
// Enabled is a pointer so we can distinguish "omitted" (enabled) from an
// explicit false.
type TelegramConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Token   string `json:"token,omitempty"` // do not log
	ChatID  string `json:"chat_id,omitempty"`
	// APIURL overrides https://api.telegram.org (local Bot API servers).
	APIURL     string `json:"api_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// MQTTConfig is the publish sink.
type MQTTConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // do not log
	Identity string `json:"identity,omitempty"`
	Topic    string `json:"topic,omitempty"`

	KeepAlive string `json:"keep_alive,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

type FeedConfig struct {
	// URL may contain "{season}".
	URL       string `json:"url,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

// LedgerConfig selects where the last announced day is kept.
//
// Example:
//
//	"ledger": { "driver": "sqlite", "path": "./tempobot.db" }
type LedgerConfig struct {
	Driver      string `json:"driver,omitempty"` // file | sqlite | postgres
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"` // do not log
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type PollConfig struct {
	// Schedule accepts "120m", "02:00" or a cron expression.
	Schedule    string `json:"schedule,omitempty"`
	RunOnStart  bool   `json:"run_on_start,omitempty"`
	Parallel    bool   `json:"parallel,omitempty"`
	SinkTimeout string `json:"sink_timeout,omitempty"`
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

// LoggingTelegram mirrors records at or above MinLevel to the Telegram chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// MetricsConfig enables the observability HTTP server when Addr is set.
//
// Security:
//   - Prefer binding to localhost.
//   - A non-loopback Addr requires Token or AllowInsecure.
type MetricsConfig struct {
	Addr          string `json:"addr,omitempty"` // e.g. "127.0.0.1:9464"
	Path          string `json:"path,omitempty"` // default "/metrics"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	// Pprof also mounts net/http/pprof under /debug/pprof/.
	Pprof bool `json:"pprof,omitempty"`
}

const (
	DefaultSchedule   = "120m"
	DefaultLedgerPath = "poll_history.txt"
	DefaultMQTTPort   = 1883
	DefaultMetrics    = "/metrics"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MQTT:    MQTTConfig{Port: DefaultMQTTPort},
		Ledger:  LedgerConfig{Driver: "file", Path: DefaultLedgerPath},
		Poll:    PollConfig{Schedule: DefaultSchedule},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// TelegramEnabled reports whether the message sink is on (default true).
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Enabled == nil || *c.Telegram.Enabled
}

// MQTTEnabled reports whether the publish sink is on (default true).
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.Enabled == nil || *c.MQTT.Enabled
}

func boolPtr(v bool) *bool { return &v }
