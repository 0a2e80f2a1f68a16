package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PETCARE_"

// Config keeps runtime settings for the assistant.
type Config struct {
	Telegram TelegramConfig `koanf:"telegram"`
	Database DatabaseConfig `koanf:"database"`
	Timezone string         `koanf:"timezone"`
	Alarms   AlarmsConfig   `koanf:"alarms"`
	Digest   DigestConfig   `koanf:"digest"`
	Refresh  RefreshConfig  `koanf:"refresh"`
}

type TelegramConfig struct {
	Token string `koanf:"token"`
	// OwnerID is the only chat the bot talks to.
	OwnerID int64 `koanf:"owner_id"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type AlarmsConfig struct {
	// Exact mirrors the exact-alarm permission. When false every alarm is inexact.
	Exact         bool          `koanf:"exact"`
	InexactWindow time.Duration `koanf:"inexact_window"`
	// AppointmentLead is how early exported appointment alarms ring.
	AppointmentLead time.Duration `koanf:"appointment_lead"`
}

type DigestConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Time        string `koanf:"time"`
	HorizonDays int    `koanf:"horizon_days"`
}

type RefreshConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// DefaultConfig returns the settings used when nothing else is provided.
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"database.url":            "petcare.db",
		"timezone":                "Local",
		"alarms.exact":            true,
		"alarms.inexact_window":   "5m",
		"alarms.appointment_lead": "1h",
		"digest.enabled":          true,
		"digest.time":             "08:00",
		"digest.horizon_days":     7,
		"refresh.interval":        "1m",
	}
}

// Load layers defaults, the optional YAML file at path and environment
// variables. PETCARE_ALARMS__INEXACT_WINDOW maps to alarms.inexact_window.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(DefaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// Plain variable names kept for existing deployments.
	if token := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); token != "" && !k.Exists("telegram.token") {
		if err := k.Set("telegram.token", token); err != nil {
			return nil, err
		}
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" && os.Getenv(envPrefix+"DATABASE__URL") == "" {
		if err := k.Set("database.url", dsn); err != nil {
			return nil, err
		}
	}
	if owner := strings.TrimSpace(os.Getenv("TELEGRAM_OWNER_ID")); owner != "" && !k.Exists("telegram.owner_id") {
		id, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_OWNER_ID: %w", err)
		}
		if err := k.Set("telegram.owner_id", id); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required (set TELEGRAM_TOKEN or telegram.token)")
	}
	if c.Telegram.OwnerID == 0 {
		return fmt.Errorf("telegram owner id is required (set TELEGRAM_OWNER_ID or telegram.owner_id)")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Alarms.InexactWindow <= 0 {
		return fmt.Errorf("alarms.inexact_window must be positive")
	}
	if c.Digest.Enabled {
		if err := validClock(c.Digest.Time); err != nil {
			return fmt.Errorf("digest.time: %w", err)
		}
	}
	if c.Digest.HorizonDays <= 0 {
		return fmt.Errorf("digest.horizon_days must be positive")
	}
	if c.Refresh.Interval < 0 {
		return fmt.Errorf("refresh.interval must not be negative")
	}
	return nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

func validClock(value string) error {
	if _, err := time.Parse("15:04", strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	return nil
}
