package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "tempobot/pkg/logx"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

const yamlConfig = `
telegram:
  token: file-token
  chat_id: "-100123"
mqtt:
  host: broker.local
  topic: home/tempo
ledger:
  driver: sqlite
  path: ./tempobot.db
poll:
  schedule: "0 */2 * * *"
  sink_timeout: 20s
metrics:
  addr: 127.0.0.1:9464
`

func TestParseYAMLKeepsDefaults(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "tempobot.yaml", yamlConfig))
	cfg, err := m.Parse()
	require.NoError(t, err)

	require.Equal(t, "file-token", cfg.Telegram.Token)
	require.Equal(t, "-100123", cfg.Telegram.ChatID)
	require.Equal(t, "broker.local", cfg.MQTT.Host)
	require.Equal(t, DefaultMQTTPort, cfg.MQTT.Port)
	require.Equal(t, "sqlite", cfg.Ledger.Driver)
	require.Equal(t, "0 */2 * * *", cfg.Poll.Schedule)
	require.Equal(t, "info", cfg.Logging.Level)
	require.True(t, cfg.TelegramEnabled())
	require.True(t, cfg.MQTTEnabled())
}

func TestParseStrict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown yaml field", file: "c.yaml", body: "poll:\n  interval: 5m\n"},
		{name: "unknown json field", file: "c.json", body: `{"tempo": {}}`},
		{name: "trailing json", file: "c.json", body: `{} {}`},
		{name: "bad yaml", file: "c.yml", body: "poll: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewConfigManager(writeFile(t, tt.file, tt.body)).Parse()
			require.Error(t, err)
		})
	}
}

func TestParseWithoutFile(t *testing.T) {
	t.Parallel()
	cfg, err := NewConfigManager("").Parse()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEnvironmentWins(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "tempobot.yaml", yamlConfig))
	m.SetLookup(envMap(map[string]string{
		EnvTelegramToken:  "env-token",
		EnvTelegramChatID: "42",
		EnvMQTTHost:       "10.0.0.2",
		EnvMQTTPort:       "8883",
		EnvMQTTUsername:   "user",
		EnvMQTTPassword:   "secret",
		EnvMQTTTopic:      "tempo",
		EnvMQTTIdentity:   "tempobot-test",
	}))

	cfg, err := m.Load(NoOverrides())
	require.NoError(t, err)
	require.Same(t, cfg, m.Get())

	require.Equal(t, "env-token", cfg.Telegram.Token)
	require.Equal(t, "42", cfg.Telegram.ChatID)
	require.Equal(t, "10.0.0.2", cfg.MQTT.Host)
	require.Equal(t, 8883, cfg.MQTT.Port)
	require.Equal(t, "user", cfg.MQTT.Username)
	require.Equal(t, "secret", cfg.MQTT.Password)
	require.Equal(t, "tempo", cfg.MQTT.Topic)
	require.Equal(t, "tempobot-test", cfg.MQTT.Identity)
}

func TestApplyEnvBadPortFallsBack(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"abc", "70000", "0", "-1"} {
		cfg := Default()
		cfg.MQTT.Port = 1234
		ApplyEnv(cfg, envMap(map[string]string{EnvMQTTPort: raw}), logx.Nop())
		require.Equal(t, DefaultMQTTPort, cfg.MQTT.Port, raw)
	}
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.MQTT.Topic = "from-file"
	ApplyEnv(cfg, envMap(map[string]string{EnvMQTTTopic: "  "}), logx.Nop())
	require.Equal(t, "from-file", cfg.MQTT.Topic)
}

func TestOverrides(t *testing.T) {
	t.Parallel()
	cfg := Default()
	Overrides{
		EnableTelegram:  false,
		EnableMQTT:      true,
		LoopTimeMin:     30,
		PollHistoryFile: "/var/lib/tempobot/history.txt",
		RunOnStart:      true,
		LogLevel:        "debug",
	}.Apply(cfg)

	require.False(t, cfg.TelegramEnabled())
	require.True(t, cfg.MQTTEnabled())
	require.Equal(t, "30m", cfg.Poll.Schedule)
	require.Equal(t, "/var/lib/tempobot/history.txt", cfg.Ledger.Path)
	require.True(t, cfg.Poll.RunOnStart)
	require.Equal(t, "debug", cfg.Logging.Level)

	before := *Default()
	after := Default()
	NoOverrides().Apply(after)
	require.Equal(t, before, *after)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := func() *Config {
		cfg := Default()
		cfg.Telegram.Token = "t"
		cfg.Telegram.ChatID = "1"
		cfg.MQTT.Host = "broker"
		cfg.MQTT.Topic = "tempo"
		return cfg
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "telegram token", mutate: func(c *Config) { c.Telegram.Token = "" }},
		{name: "telegram chat", mutate: func(c *Config) { c.Telegram.ChatID = "" }},
		{name: "mqtt host", mutate: func(c *Config) { c.MQTT.Host = "" }},
		{name: "mqtt topic", mutate: func(c *Config) { c.MQTT.Topic = "" }},
		{name: "mqtt half credentials", mutate: func(c *Config) { c.MQTT.Username = "u" }},
		{name: "ledger driver", mutate: func(c *Config) { c.Ledger.Driver = "redis" }},
		{name: "postgres dsn", mutate: func(c *Config) { c.Ledger.Driver = "postgres" }},
		{name: "duration", mutate: func(c *Config) { c.Poll.SinkTimeout = "soon" }},
		{name: "schedule", mutate: func(c *Config) { c.Poll.Schedule = " " }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalid))
		})
	}

	t.Run("disabled channels need nothing", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		cfg.Telegram.Enabled = boolPtr(false)
		cfg.MQTT.Enabled = boolPtr(false)
		require.NoError(t, Validate(cfg))
	})
}

func TestLoadDotEnv(t *testing.T) {
	p := writeFile(t, ".env", "TEMPOBOT_DOTENV_PROBE=loaded\n")
	t.Setenv("TEMPOBOT_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("TEMPOBOT_DOTENV_PROBE"))

	require.NoError(t, LoadDotEnv(p, filepath.Join(t.TempDir(), "missing.env")))
	require.Equal(t, "loaded", os.Getenv("TEMPOBOT_DOTENV_PROBE"))
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, d)

	d, err = ParseDurationOrDefault("x", "250ms", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)

	_, err = ParseDurationOrDefault("x", "-1s", 5*time.Second)
	require.Error(t, err)
}

func TestSummarizeOmitsSecrets(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Telegram.Token = "super-secret-token"
	cfg.MQTT.Password = "super-secret-password"
	cfg.MQTT.Username = "u"

	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "info")
	log.Info("config", Summarize(cfg)...)
	out := buf.String()
	require.Contains(t, out, "telegram.token_set")
	require.NotContains(t, out, "super-secret")
}
