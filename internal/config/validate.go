package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("invalid config")

// Validate checks that every enabled channel is usable and that all
// durations parse. Problems are joined so one run reports all of them.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if cfg.TelegramEnabled() {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			add("telegram.token required (or %s)", EnvTelegramToken)
		}
		if strings.TrimSpace(cfg.Telegram.ChatID) == "" {
			add("telegram.chat_id required (or %s)", EnvTelegramChatID)
		}
	}
	if cfg.MQTTEnabled() {
		if strings.TrimSpace(cfg.MQTT.Host) == "" {
			add("mqtt.host required (or %s)", EnvMQTTHost)
		}
		if strings.TrimSpace(cfg.MQTT.Topic) == "" {
			add("mqtt.topic required (or %s)", EnvMQTTTopic)
		}
		if cfg.MQTT.Port < 0 || cfg.MQTT.Port > 65535 {
			add("mqtt.port out of range: %d", cfg.MQTT.Port)
		}
		if (cfg.MQTT.Username == "") != (cfg.MQTT.Password == "") {
			add("mqtt.username and mqtt.password must be set together")
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver)) {
	case "", "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Ledger.Path) == "" {
			add("ledger.path required")
		}
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(cfg.Ledger.DSN) == "" {
			add("ledger.dsn required for driver %q", cfg.Ledger.Driver)
		}
	default:
		add("unknown ledger.driver %q", cfg.Ledger.Driver)
	}

	for path, raw := range map[string]string{
		"telegram.timeout":    cfg.Telegram.Timeout,
		"mqtt.keep_alive":     cfg.MQTT.KeepAlive,
		"mqtt.timeout":        cfg.MQTT.Timeout,
		"feed.timeout":        cfg.Feed.Timeout,
		"ledger.busy_timeout": cfg.Ledger.BusyTimeout,
		"poll.sink_timeout":   cfg.Poll.SinkTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
		}
	}
	if strings.TrimSpace(cfg.Poll.Schedule) == "" {
		add("poll.schedule required")
	}
	return errors.Join(errs...)
}
