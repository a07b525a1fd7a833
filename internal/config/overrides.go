package config

import (
	"strconv"
	"strings"
)

// Overrides are command-line settings. Zero values leave cfg untouched,
// except the channel switches which can only turn a channel off.
type Overrides struct {
	EnableTelegram bool
	EnableMQTT     bool
	// LoopTimeMin replaces poll.schedule with a fixed interval in minutes.
	LoopTimeMin     int
	PollHistoryFile string
	RunOnStart      bool
	LogLevel        string
}

// NoOverrides leaves the loaded configuration as it is.
func NoOverrides() Overrides {
	return Overrides{EnableTelegram: true, EnableMQTT: true}
}

// Apply writes the overrides onto cfg.
func (o Overrides) Apply(cfg *Config) {
	if !o.EnableTelegram {
		cfg.Telegram.Enabled = boolPtr(false)
	}
	if !o.EnableMQTT {
		cfg.MQTT.Enabled = boolPtr(false)
	}
	if o.LoopTimeMin > 0 {
		cfg.Poll.Schedule = strconv.Itoa(o.LoopTimeMin) + "m"
	}
	if p := strings.TrimSpace(o.PollHistoryFile); p != "" {
		cfg.Ledger.Path = p
	}
	if o.RunOnStart {
		cfg.Poll.RunOnStart = true
	}
	if l := strings.TrimSpace(o.LogLevel); l != "" {
		cfg.Logging.Level = l
	}
}
