package config

import (
	"strings"

	logx "tempobot/pkg/logx"
)

// Summarize returns safe structured attrs describing cfg for the startup
// log. Secrets (bot token, MQTT password, postgres DSN) are never included.
func Summarize(cfg *Config) []logx.Field {
	if cfg == nil {
		cfg = Default()
	}
	attrs := make([]logx.Field, 0, 16)

	attrs = append(attrs, logx.Bool("telegram.enabled", cfg.TelegramEnabled()))
	if cfg.TelegramEnabled() {
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(cfg.Telegram.Token) != ""),
			logx.String("telegram.chat_id", cfg.Telegram.ChatID),
		)
	}

	attrs = append(attrs, logx.Bool("mqtt.enabled", cfg.MQTTEnabled()))
	if cfg.MQTTEnabled() {
		attrs = append(attrs,
			logx.String("mqtt.host", cfg.MQTT.Host),
			logx.Int("mqtt.port", cfg.MQTT.Port),
			logx.String("mqtt.topic", cfg.MQTT.Topic),
			logx.Bool("mqtt.auth", cfg.MQTT.Username != ""),
		)
	}

	driver := strings.TrimSpace(cfg.Ledger.Driver)
	if driver == "" {
		driver = "file"
	}
	attrs = append(attrs, logx.String("ledger.driver", driver))
	if cfg.Ledger.Path != "" {
		attrs = append(attrs, logx.String("ledger.path", cfg.Ledger.Path))
	}

	attrs = append(attrs,
		logx.String("poll.schedule", cfg.Poll.Schedule),
		logx.Bool("poll.run_on_start", cfg.Poll.RunOnStart),
		logx.String("logx.level", cfg.Logging.Level),
		logx.Bool("logx.telegram_enabled", cfg.Logging.Telegram.Enabled),
	)
	if cfg.Metrics.Addr != "" {
		attrs = append(attrs, logx.String("metrics.addr", cfg.Metrics.Addr))
	}
	return attrs
}
