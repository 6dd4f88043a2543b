package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "dayplan.db"
	DefaultLogName        = "dayplan.log"
	EnvPrefix             = "DAYPLAN_"
)

type Keymap struct {
	Quit          string `toml:"quit"`
	Add           string `toml:"add"`
	Up            string `toml:"up"`
	Down          string `toml:"down"`
	SwitchPane    string `toml:"switch_pane"`
	Toggle        string `toml:"toggle"`
	Important     string `toml:"important"`
	Priority      string `toml:"priority"`
	Delete        string `toml:"delete"`
	Confirm       string `toml:"confirm"`
	Cancel        string `toml:"cancel"`
	Edit          string `toml:"edit"`
	Styles        string `toml:"styles"`
	Reminder      string `toml:"reminder"`
	ClearReminder string `toml:"clear_reminder"`
	Search        string `toml:"search"`
	Filter        string `toml:"filter"`
	Sort          string `toml:"sort"`
	View          string `toml:"view"`
	PrevDay       string `toml:"prev_day"`
	NextDay       string `toml:"next_day"`
	Today         string `toml:"today"`
	Focus         string `toml:"focus"`
	TimerStart    string `toml:"timer_start"`
	TimerReset    string `toml:"timer_reset"`
	TimerPreset   string `toml:"timer_preset"`
}

type Focus struct {
	// Presets are session lengths in minutes.
	Presets []int `toml:"presets" env:"PRESETS" envSeparator:"," validate:"min=1,dive,gt=0,lte=240"`
	Sound   bool  `toml:"sound" env:"SOUND"`
}

type Config struct {
	DBPath               string `toml:"db_path" env:"DB_PATH"`
	LogPath              string `toml:"log_path" env:"LOG_PATH"`
	LogLevel             string `toml:"log_level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
	DefaultFilter        string `toml:"default_filter" env:"DEFAULT_FILTER" validate:"oneof=all completed incomplete important"`
	DefaultSort          string `toml:"default_sort" env:"DEFAULT_SORT" validate:"oneof=default date-asc date-desc priority-high alpha"`
	DefaultView          string `toml:"default_view" env:"DEFAULT_VIEW" validate:"oneof=all important"`
	ReminderInterval     string `toml:"reminder_interval" env:"REMINDER_INTERVAL" validate:"interval"`
	WatchInterval        string `toml:"watch_interval" env:"WATCH_INTERVAL" validate:"interval"`
	QuotaBytes           int64  `toml:"quota_bytes" env:"QUOTA_BYTES" validate:"gte=0"`
	AutoClearOnce        bool   `toml:"auto_clear_once" env:"AUTO_CLEAR_ONCE"`
	DesktopNotifications bool   `toml:"desktop_notifications" env:"DESKTOP_NOTIFICATIONS"`
	Focus                Focus  `toml:"focus" envPrefix:"FOCUS_"`
	Keys                 Keymap `toml:"keys"`
}

// ResolveConfigPath honours $DAYPLAN_CONFIG, then the user config directory.
func ResolveConfigPath() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, "dayplan", DefaultConfigFileName)
}

// LoadOrCreate reads the config at path, writing the defaults there first
// if it does not exist. Environment variables override file values.
// Relative db and log paths are taken from the config file's directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	dir := filepath.Dir(path)
	cfg.DBPath = resolve(dir, cfg.DBPath)
	if cfg.LogPath != "" {
		cfg.LogPath = resolve(dir, cfg.LogPath)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= time.Second
	})
	return v
}

// Validate rejects unknown modes and unusable intervals.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ReminderEvery is the reminder poll period.
func (c Config) ReminderEvery() time.Duration { return duration(c.ReminderInterval, time.Minute) }

// WatchEvery is how often the database is checked for changes made by
// other processes.
func (c Config) WatchEvery() time.Duration { return duration(c.WatchInterval, 2*time.Second) }

func (c Config) FocusPresets() []time.Duration {
	out := make([]time.Duration, 0, len(c.Focus.Presets))
	for _, m := range c.Focus.Presets {
		out = append(out, time.Duration(m)*time.Minute)
	}
	return out
}

func duration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func Default() Config {
	return Config{
		DBPath:               DefaultDBName,
		LogPath:              DefaultLogName,
		LogLevel:             "info",
		DefaultFilter:        "all",
		DefaultSort:          "default",
		DefaultView:          "all",
		ReminderInterval:     "1m",
		WatchInterval:        "2s",
		QuotaBytes:           5 << 20,
		AutoClearOnce:        true,
		DesktopNotifications: true,
		Focus: Focus{
			Presets: []int{25, 15, 5},
			Sound:   true,
		},
		Keys: Keymap{
			Quit:          "q",
			Add:           "a",
			Up:            "k",
			Down:          "j",
			SwitchPane:    "tab",
			Toggle:        " ",
			Important:     "i",
			Priority:      "p",
			Delete:        "d",
			Confirm:       "enter",
			Cancel:        "esc",
			Edit:          "e",
			Styles:        "s",
			Reminder:      "r",
			ClearReminder: "R",
			Search:        "/",
			Filter:        "f",
			Sort:          "o",
			View:          "v",
			PrevDay:       "[",
			NextDay:       "]",
			Today:         "t",
			Focus:         "F",
			TimerStart:    "S",
			TimerReset:    "X",
			TimerPreset:   "P",
		},
	}
}
