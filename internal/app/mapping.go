package app

import (
	"tempobot/internal/config"
	"tempobot/internal/ledger"
	"tempobot/internal/observability"
	"tempobot/internal/orchestrator"
	"tempobot/internal/sink"
	"tempobot/internal/tempo"
	logx "tempobot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Forward: logx.ForwardConfig{
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.TelegramEnabled(),
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (sink.TelegramConfig, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, sink.DefaultTimeout)
	if err != nil {
		return sink.TelegramConfig{}, err
	}
	return sink.TelegramConfig{
		Token:      cfg.Telegram.Token,
		ChatID:     cfg.Telegram.ChatID,
		APIURL:     cfg.Telegram.APIURL,
		Timeout:    timeout,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, nil
}

func mapMQTTConfig(cfg *config.Config) (sink.MQTTConfig, error) {
	keepAlive, err := config.ParseDurationOrDefault("mqtt.keep_alive", cfg.MQTT.KeepAlive, sink.DefaultKeepAlive)
	if err != nil {
		return sink.MQTTConfig{}, err
	}
	timeout, err := config.ParseDurationOrDefault("mqtt.timeout", cfg.MQTT.Timeout, sink.DefaultTimeout)
	if err != nil {
		return sink.MQTTConfig{}, err
	}
	return sink.MQTTConfig{
		Host:      cfg.MQTT.Host,
		Port:      cfg.MQTT.Port,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		Identity:  cfg.MQTT.Identity,
		Topic:     cfg.MQTT.Topic,
		KeepAlive: keepAlive,
		Timeout:   timeout,
	}, nil
}

func mapFeedConfig(cfg *config.Config) (tempo.FeedConfig, error) {
	timeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, tempo.DefaultTimeout)
	if err != nil {
		return tempo.FeedConfig{}, err
	}
	return tempo.FeedConfig{URL: cfg.Feed.URL, UserAgent: cfg.Feed.UserAgent, Timeout: timeout}, nil
}

func mapLedgerConfig(cfg *config.Config) (ledger.Config, error) {
	busy, err := config.ParseDurationField("ledger.busy_timeout", cfg.Ledger.BusyTimeout)
	if err != nil {
		return ledger.Config{}, err
	}
	return ledger.Config{
		Driver:      cfg.Ledger.Driver,
		Path:        cfg.Ledger.Path,
		DSN:         cfg.Ledger.DSN,
		BusyTimeout: busy,
	}, nil
}

// mapPollConfig also checks that the schedule parses, so a bad one fails at
// startup rather than inside the supervised loop.
func mapPollConfig(cfg *config.Config) (orchestrator.Config, error) {
	spec, err := orchestrator.ParseSchedule(cfg.Poll.Schedule)
	if err != nil {
		return orchestrator.Config{}, err
	}
	if _, err := spec.Schedule(); err != nil {
		return orchestrator.Config{}, err
	}
	sinkTimeout, err := config.ParseDurationOrDefault("poll.sink_timeout", cfg.Poll.SinkTimeout, orchestrator.DefaultSinkTimeout)
	if err != nil {
		return orchestrator.Config{}, err
	}
	return orchestrator.Config{
		Schedule:    cfg.Poll.Schedule,
		RunOnStart:  cfg.Poll.RunOnStart,
		Parallel:    cfg.Poll.Parallel,
		SinkTimeout: sinkTimeout,
	}, nil
}

func mapObservabilityConfig(cfg *config.Config) observability.Config {
	return observability.Config{
		Addr:          cfg.Metrics.Addr,
		MetricsPath:   cfg.Metrics.Path,
		Token:         cfg.Metrics.Token,
		AllowInsecure: cfg.Metrics.AllowInsecure,
		Pprof:         cfg.Metrics.Pprof,
	}
}
