package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", DefaultConfigFileName)

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if cfg.DBPath != filepath.Join(dir, "nested", DefaultDBName) {
		t.Errorf("db path should sit next to the config, got %s", cfg.DBPath)
	}
	if cfg.ReminderEvery() != time.Minute || cfg.WatchEvery() != 2*time.Second {
		t.Errorf("intervals: %v %v", cfg.ReminderEvery(), cfg.WatchEvery())
	}
	if got := cfg.FocusPresets(); len(got) != 3 || got[0] != 25*time.Minute {
		t.Errorf("presets: %v", got)
	}
	if !cfg.AutoClearOnce || cfg.Keys.Quit != "q" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	again, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.DBPath != cfg.DBPath || again.Keys != cfg.Keys {
		t.Error("reloading the written defaults should give the same config")
	}
}

func TestLoadOrCreateReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFileName)
	body := `
db_path = "/tmp/elsewhere.db"
default_sort = "alpha"
reminder_interval = "30s"
auto_clear_once = false

[focus]
sound = false

[keys]
quit = "x"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/elsewhere.db" || cfg.DefaultSort != "alpha" || cfg.AutoClearOnce {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ReminderEvery() != 30*time.Second {
		t.Errorf("interval: %v", cfg.ReminderEvery())
	}
	if cfg.Keys.Quit != "x" || cfg.Keys.Add != "a" {
		t.Errorf("keys should merge over defaults: %+v", cfg.Keys)
	}
	if cfg.Focus.Sound || len(cfg.Focus.Presets) != 3 {
		t.Errorf("focus table should merge over defaults: %+v", cfg.Focus)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFileName)
	t.Setenv("DAYPLAN_DEFAULT_FILTER", "important")
	t.Setenv("DAYPLAN_QUOTA_BYTES", "1024")
	t.Setenv("DAYPLAN_FOCUS_PRESETS", "45,5")
	t.Setenv("DAYPLAN_DB_PATH", "custom.db")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultFilter != "important" || cfg.QuotaBytes != 1024 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if p := cfg.FocusPresets(); len(p) != 2 || p[0] != 45*time.Minute {
		t.Errorf("presets: %v", p)
	}
	if cfg.DBPath != filepath.Join(dir, "custom.db") {
		t.Errorf("db path: %s", cfg.DBPath)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"filter", func(c *Config) { c.DefaultFilter = "soon" }, "DefaultFilter"},
		{"sort", func(c *Config) { c.DefaultSort = "random" }, "DefaultSort"},
		{"view", func(c *Config) { c.DefaultView = "starred" }, "DefaultView"},
		{"interval", func(c *Config) { c.ReminderInterval = "often" }, "ReminderInterval"},
		{"tiny interval", func(c *Config) { c.WatchInterval = "1ms" }, "WatchInterval"},
		{"level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"presets", func(c *Config) { c.Focus.Presets = nil }, "Presets"},
		{"quota", func(c *Config) { c.QuotaBytes = -1 }, "QuotaBytes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.edit(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.field) {
				t.Errorf("expected error on %s, got %v", tc.field, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestResolveConfigPathEnv(t *testing.T) {
	t.Setenv("DAYPLAN_CONFIG", "/etc/dayplan.toml")
	if got := ResolveConfigPath(); got != "/etc/dayplan.toml" {
		t.Errorf("got %s", got)
	}
}
