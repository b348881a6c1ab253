package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/checklist/internal/pagestate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.StateBackend != "file" {
		t.Fatalf("StateBackend = %q, want file", cfg.StateBackend)
	}
	if cfg.MaxStateBytes != pagestate.DefaultMaxBytes {
		t.Fatalf("MaxStateBytes = %d, want %d", cfg.MaxStateBytes, pagestate.DefaultMaxBytes)
	}
	if cfg.MaxStateAge != 24*time.Hour || cfg.CleanupInterval != time.Hour {
		t.Fatalf("durations = %v/%v, want 24h/1h", cfg.MaxStateAge, cfg.CleanupInterval)
	}
	if !strings.HasPrefix(cfg.StateDir, home) {
		t.Fatalf("StateDir = %q, want it under HOME %q", cfg.StateDir, home)
	}
	if !strings.HasPrefix(cfg.LogFile, home) {
		t.Fatalf("LogFile = %q, want it under HOME %q", cfg.LogFile, home)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
api_url = "  https://checklist.example.com  "
state_backend = "SQLite"
state_dir = "  ~/.checklist  "
max_state_bytes = 1048576
max_state_age = "12h"
cleanup_interval = "15m"
log_level = "DEBUG"
poll_interval = "10s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://checklist.example.com" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.StateBackend != "sqlite" {
		t.Fatalf("StateBackend = %q, want sqlite", cfg.StateBackend)
	}
	if cfg.StateDir != filepath.Join(home, ".checklist") {
		t.Fatalf("StateDir = %q, want %q", cfg.StateDir, filepath.Join(home, ".checklist"))
	}
	if cfg.MaxStateBytes != 1<<20 {
		t.Fatalf("MaxStateBytes = %d, want %d", cfg.MaxStateBytes, 1<<20)
	}
	if cfg.MaxStateAge != 12*time.Hour || cfg.CleanupInterval != 15*time.Minute || cfg.PollInterval != 10*time.Second {
		t.Fatalf("durations = %v/%v/%v", cfg.MaxStateAge, cfg.CleanupInterval, cfg.PollInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHECKLIST_API_URL", "http://override:9000")
	t.Setenv("CHECKLIST_TOKEN", "secret")
	t.Setenv("CHECKLIST_STATE_BACKEND", "memory")
	t.Setenv("CHECKLIST_MAX_STATE_BYTES", "2048")
	t.Setenv("CHECKLIST_MAX_STATE_AGE", "30m")

	path := writeConfig(t, `
api_url = "http://file:8000"
state_backend = "sqlite"
max_state_age = "12h"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://override:9000" || cfg.Token != "secret" {
		t.Fatalf("APIURL/Token = %q/%q", cfg.APIURL, cfg.Token)
	}
	if cfg.StateBackend != "memory" {
		t.Fatalf("StateBackend = %q, want memory", cfg.StateBackend)
	}
	if cfg.MaxStateBytes != 2048 || cfg.MaxStateAge != 30*time.Minute {
		t.Fatalf("MaxStateBytes/MaxStateAge = %d/%v", cfg.MaxStateBytes, cfg.MaxStateAge)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
api_url = "   "
state_backend = ""
max_state_age = ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("Load = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{"invalid toml", `api_url = [`, nil, "parse config"},
		{"bad duration", `max_state_age = "a day"`, nil, "parse max_state_age"},
		{"unknown backend", `state_backend = "redis"`, nil, "state_backend"},
		{"negative bytes", `max_state_bytes = -1`, nil, "max_state_bytes"},
		{"bad env bytes", ``, map[string]string{"CHECKLIST_MAX_STATE_BYTES": "lots"}, "CHECKLIST_MAX_STATE_BYTES"},
		{"bad env duration", ``, map[string]string{"CHECKLIST_POLL_INTERVAL": "soon"}, "parse poll_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("Load returned nil error, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load error = %q, want it to mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPrefsPath_SitsNextToConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got, want := PrefsPath(""), filepath.Join(home, ".config", "checklist", "prefs.toml"); got != want {
		t.Fatalf("PrefsPath(\"\") = %q, want %q", got, want)
	}
	if got, want := PrefsPath("/etc/checklist/config.toml"), "/etc/checklist/prefs.toml"; got != want {
		t.Fatalf("PrefsPath = %q, want %q", got, want)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
