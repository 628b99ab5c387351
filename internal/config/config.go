package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the gloop client and admin configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Local     LocalConfig     `yaml:"local"`
	Period    PeriodConfig    `yaml:"period"`
	Boost     BoostConfig     `yaml:"boost"`
	Poll      PollConfig      `yaml:"poll"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Chat      ChatConfig      `yaml:"chat"`
	Invite    InviteConfig    `yaml:"invite"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects the authoritative record store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or pgx
	DSN    string `yaml:"dsn"`
}

// LocalConfig locates the best-effort local key-value store.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// PeriodConfig defines the daily reset boundary.
type PeriodConfig struct {
	Timezone string        `yaml:"timezone"`
	Cutover  time.Duration `yaml:"cutover"`
}

// BoostConfig holds the boost multiplier parameters.
type BoostConfig struct {
	DailyCap   int           `yaml:"daily_cap"`
	Duration   time.Duration `yaml:"duration"`
	Multiplier int64         `yaml:"multiplier"`
}

// PollConfig holds refresh intervals.
type PollConfig struct {
	Users time.Duration `yaml:"users"`
	Chat  time.Duration `yaml:"chat"`
}

// ReconcileConfig tunes the merge of local and server counters.
type ReconcileConfig struct {
	Slack int64 `yaml:"slack"`
}

// ChatConfig holds global chat settings.
type ChatConfig struct {
	History          int      `yaml:"history"`
	BannedWords      []string `yaml:"banned_words"` // nil selects the built-in list
	ModerationScript string   `yaml:"moderation_script"`
}

// InviteConfig holds invite link settings.
type InviteConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "./data/gloop.db",
		},
		Local: LocalConfig{
			Path: "./data/local.db",
		},
		Period: PeriodConfig{
			Timezone: "America/New_York",
		},
		Boost: BoostConfig{
			DailyCap:   10,
			Duration:   60 * time.Second,
			Multiplier: 10,
		},
		Poll: PollConfig{
			Users: 5 * time.Second,
			Chat:  4 * time.Second,
		},
		Reconcile: ReconcileConfig{
			Slack: 100,
		},
		Chat: ChatConfig{
			History: 50,
		},
		Invite: InviteConfig{
			BaseURL: "http://localhost:3000",
		},
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
			File:  "./data/gloop.log",
		},
	}
}

// Load reads a YAML config file on top of the defaults, then applies a .env
// file next to the working directory and GLOOP_* environment variables. A
// missing config file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"GLOOP_STORE_DRIVER":    &c.Store.Driver,
		"GLOOP_STORE_DSN":       &c.Store.DSN,
		"GLOOP_LOCAL_PATH":      &c.Local.Path,
		"GLOOP_TIMEZONE":        &c.Period.Timezone,
		"GLOOP_INVITE_BASE_URL": &c.Invite.BaseURL,
		"GLOOP_LOG_MODE":        &c.Log.Mode,
		"GLOOP_LOG_LEVEL":       &c.Log.Level,
		"GLOOP_LOG_FILE":        &c.Log.File,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("GLOOP_PERIOD_CUTOVER"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GLOOP_PERIOD_CUTOVER: %w", err)
		}
		c.Period.Cutover = d
	}
	if v, ok := os.LookupEnv("GLOOP_BOOST_DAILY_CAP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GLOOP_BOOST_DAILY_CAP: %w", err)
		}
		c.Boost.DailyCap = n
	}
	return nil
}
