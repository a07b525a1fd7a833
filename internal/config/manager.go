package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	logx "tempobot/pkg/logx"
)

// ConfigManager loads the configuration once: file, then environment, then
// command-line overrides. The result is immutable for the process lifetime.
type ConfigManager struct {
	path   string
	lookup func(string) (string, bool)

	mu  sync.RWMutex
	cfg *Config

	log logx.Logger
}

// NewConfigManager reads from path; an empty path means defaults only.
func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path, lookup: os.LookupEnv}
}

func (m *ConfigManager) SetLogger(log logx.Logger) { m.log = log }

// SetLookup replaces the environment lookup (tests).
func (m *ConfigManager) SetLookup(fn func(string) (string, bool)) { m.lookup = fn }

// Parse decodes the file strictly: unknown fields and trailing data are
// rejected. Fields the file omits keep their Default() value.
func (m *ConfigManager) Parse() (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(m.path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, format, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s (%s): %w", m.path, format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return cfg, nil
}

// Load parses the file, applies the environment and overrides, validates,
// and commits the result.
func (m *ConfigManager) Load(ov Overrides) (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, m.lookup, m.log)
	ov.Apply(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}
