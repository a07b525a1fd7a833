package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	logx "tempobot/pkg/logx"
)

// Environment variables; when set they win over the file.
const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvMQTTHost       = "MQTT_IP"
	EnvMQTTPort       = "MQTT_PORT"
	EnvMQTTUsername   = "MQTT_USERNAME"
	EnvMQTTPassword   = "MQTT_PASSWORD"
	EnvMQTTTopic      = "MQTT_TOPIC"
	EnvMQTTIdentity   = "MQTT_IDENTITY"
)

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv copies the environment onto cfg. An unparsable MQTT_PORT is
// logged and replaced by the default port.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool), log logx.Logger) {
	if lookup == nil {
		return
	}
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get(EnvTelegramToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvTelegramChatID); ok {
		cfg.Telegram.ChatID = v
	}
	if v, ok := get(EnvMQTTHost); ok {
		cfg.MQTT.Host = v
	}
	if v, ok := get(EnvMQTTPort); ok {
		p, err := strconv.ParseUint(v, 10, 16)
		if err != nil || p == 0 {
			log.Warn("could not convert mqtt port; defaulting", logx.String("value", v), logx.Int("port", DefaultMQTTPort))
			cfg.MQTT.Port = DefaultMQTTPort
		} else {
			cfg.MQTT.Port = int(p)
		}
	}
	if v, ok := get(EnvMQTTUsername); ok {
		cfg.MQTT.Username = v
	}
	if v, ok := get(EnvMQTTPassword); ok {
		cfg.MQTT.Password = v
	}
	if v, ok := get(EnvMQTTTopic); ok {
		cfg.MQTT.Topic = v
	}
	if v, ok := get(EnvMQTTIdentity); ok {
		cfg.MQTT.Identity = v
	}
}
