package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/checklist/internal/pagestate"
	"github.com/five82/checklist/internal/slot"
)

// Config holds the client settings after defaults and overrides.
type Config struct {
	APIURL          string
	Token           string
	StateBackend    string
	StateDir        string
	MaxStateBytes   int
	MaxStateAge     time.Duration
	CleanupInterval time.Duration
	LogFile         string
	LogLevel        string
	PollInterval    time.Duration
}

const (
	defaultConfigPath   = "~/.config/checklist/config.toml"
	defaultAPIURL       = "http://127.0.0.1:8000"
	defaultStateDir     = "~/.local/state/checklist"
	defaultLogFile      = "~/.local/state/checklist/checklist.log"
	defaultLogLevel     = "info"
	defaultPollInterval = 5 * time.Second
)

// fileConfig mirrors config.toml. Durations are Go duration strings.
type fileConfig struct {
	APIURL          string `toml:"api_url"`
	Token           string `toml:"token"`
	StateBackend    string `toml:"state_backend"`
	StateDir        string `toml:"state_dir"`
	MaxStateBytes   int    `toml:"max_state_bytes"`
	MaxStateAge     string `toml:"max_state_age"`
	CleanupInterval string `toml:"cleanup_interval"`
	LogFile         string `toml:"log_file"`
	LogLevel        string `toml:"log_level"`
	PollInterval    string `toml:"poll_interval"`
}

// envConfig holds environment overrides. Empty values leave the file
// setting in place.
type envConfig struct {
	APIURL          string `env:"CHECKLIST_API_URL"`
	Token           string `env:"CHECKLIST_TOKEN"`
	StateBackend    string `env:"CHECKLIST_STATE_BACKEND"`
	StateDir        string `env:"CHECKLIST_STATE_DIR"`
	MaxStateBytes   string `env:"CHECKLIST_MAX_STATE_BYTES"`
	MaxStateAge     string `env:"CHECKLIST_MAX_STATE_AGE"`
	CleanupInterval string `env:"CHECKLIST_CLEANUP_INTERVAL"`
	LogFile         string `env:"CHECKLIST_LOG_FILE"`
	LogLevel        string `env:"CHECKLIST_LOG_LEVEL"`
	PollInterval    string `env:"CHECKLIST_POLL_INTERVAL"`
}

// Default returns the built-in settings with paths expanded.
func Default() Config {
	return Config{
		APIURL:          defaultAPIURL,
		StateBackend:    slot.BackendFile,
		StateDir:        mustExpand(defaultStateDir),
		MaxStateBytes:   pagestate.DefaultMaxBytes,
		MaxStateAge:     pagestate.DefaultMaxAge,
		CleanupInterval: pagestate.DefaultCleanupInterval,
		LogFile:         mustExpand(defaultLogFile),
		LogLevel:        defaultLogLevel,
		PollInterval:    defaultPollInterval,
	}
}

// Load reads the config file, falling back to defaults when it is missing,
// then applies CHECKLIST_* environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw fileConfig
	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	var overrides envConfig
	if err := env.Parse(&overrides); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Default()
	if err := cfg.apply(raw.layer(), raw.MaxStateBytes); err != nil {
		return Config{}, err
	}
	envBytes := 0
	if v := strings.TrimSpace(overrides.MaxStateBytes); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKLIST_MAX_STATE_BYTES: %w", err)
		}
		envBytes = n
	}
	if err := cfg.apply(overrides.layer(), envBytes); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	switch c.StateBackend {
	case slot.BackendFile, slot.BackendSQLite, slot.BackendMemory:
	default:
		return fmt.Errorf("state_backend %q: want file, sqlite or memory", c.StateBackend)
	}
	if c.MaxStateBytes <= 0 {
		return fmt.Errorf("max_state_bytes must be positive, got %d", c.MaxStateBytes)
	}
	if c.MaxStateAge <= 0 || c.CleanupInterval <= 0 || c.PollInterval <= 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

// settings is the string form shared by the file and env layers.
type settings struct {
	apiURL, token, backend, stateDir         string
	maxAge, cleanup, logFile, level, pollInt string
}

func (f fileConfig) layer() settings {
	return settings{
		apiURL: f.APIURL, token: f.Token, backend: f.StateBackend, stateDir: f.StateDir,
		maxAge: f.MaxStateAge, cleanup: f.CleanupInterval, logFile: f.LogFile,
		level: f.LogLevel, pollInt: f.PollInterval,
	}
}

func (e envConfig) layer() settings {
	return settings{
		apiURL: e.APIURL, token: e.Token, backend: e.StateBackend, stateDir: e.StateDir,
		maxAge: e.MaxStateAge, cleanup: e.CleanupInterval, logFile: e.LogFile,
		level: e.LogLevel, pollInt: e.PollInterval,
	}
}

func (c *Config) apply(s settings, maxBytes int) error {
	if v := strings.TrimSpace(s.apiURL); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(s.token); v != "" {
		c.Token = v
	}
	if v := strings.TrimSpace(s.backend); v != "" {
		c.StateBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(s.stateDir); v != "" {
		c.StateDir = mustExpand(v)
	}
	if v := strings.TrimSpace(s.logFile); v != "" {
		c.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(s.level); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if maxBytes != 0 {
		c.MaxStateBytes = maxBytes
	}

	durations := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"max_state_age", s.maxAge, &c.MaxStateAge},
		{"cleanup_interval", s.cleanup, &c.CleanupInterval},
		{"poll_interval", s.pollInt, &c.PollInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(d.value)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dest = parsed
	}
	return nil
}

// PrefsPath returns the preferences file next to the config file.
func PrefsPath(configPath string) string {
	resolved, err := resolvePath(configPath)
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(resolved), "prefs.toml")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
