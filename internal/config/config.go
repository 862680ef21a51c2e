package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/timelabel"
)

// envPrefix namespaces nested keys: REMINDER_TELEGRAM__TIMEOUT sets
// telegram.timeout.
const envPrefix = "REMINDER_"

// legacyEnv maps the flat variable names the bot has always read.
var legacyEnv = map[string]string{
	"TOKEN":                          "telegram.token",
	"URL":                            "telegram.base_url",
	"CHAT_ID":                        "telegram.chat_id",
	"DATABASE_STRING":                "database.dsn",
	"SNOOZE_MINUTES":                 "reminders.snooze_minutes",
	"RESET_TIME":                     "reminders.reset_time",
	"NEW_REMINDER_MESSAGE_DELIMITER": "reminders.delimiter",
	"POLL_TIME":                      "poll.interval",
}

type Config struct {
	// Console replaces Telegram with the terminal transport.
	Console   bool            `koanf:"console"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Database  DatabaseConfig  `koanf:"database"`
	Reminders RemindersConfig `koanf:"reminders"`
	Poll      PollConfig      `koanf:"poll"`
	Commands  CommandsConfig  `koanf:"commands"`
	Log       LogConfig       `koanf:"log"`
}

type TelegramConfig struct {
	Token         string `koanf:"token"`
	BaseURL       string `koanf:"base_url"`
	ChatID        string `koanf:"chat_id"`
	Timeout       int    `koanf:"timeout"`        // HTTP timeout in seconds
	RetryAttempts int    `koanf:"retry_attempts"` // Attempts per call, including the first
	RetryBaseMS   int    `koanf:"retry_base_ms"`  // First backoff delay, doubled per retry
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type RemindersConfig struct {
	SnoozeMinutes int    `koanf:"snooze_minutes"`
	ResetTime     string `koanf:"reset_time"`
	Delimiter     string `koanf:"delimiter"`
}

type PollConfig struct {
	Interval int `koanf:"interval"` // seconds
}

type CommandsConfig struct {
	ReportErrors bool `koanf:"report_errors"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !reminder.IsPostgres(cfg.Database.DSN) {
		cfg.Database.DSN = expandPath(cfg.Database.DSN)
	}

	return &cfg, nil
}

// maxRetryAttempts keeps the doubled backoff delay from overflowing.
const maxRetryAttempts = 10

func (c *Config) Validate() error {
	if !c.Console {
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram token is required (set TOKEN or telegram.token)")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram chat id is required (set CHAT_ID or telegram.chat_id)")
		}
	}

	if c.Telegram.RetryAttempts < 1 || c.Telegram.RetryAttempts > maxRetryAttempts {
		return fmt.Errorf("retry_attempts must be between 1 and %d, got %d", maxRetryAttempts, c.Telegram.RetryAttempts)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database connection string is required (set DATABASE_STRING)")
	}

	if c.Reminders.SnoozeMinutes <= 0 || c.Reminders.SnoozeMinutes >= 24*60 {
		return fmt.Errorf("snooze_minutes must be between 1 and 1439, got %d", c.Reminders.SnoozeMinutes)
	}

	if _, err := timelabel.Parse(c.Reminders.ResetTime); err != nil {
		return fmt.Errorf("reset_time: %w", err)
	}

	if utf8.RuneCountInString(c.Reminders.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Reminders.Delimiter)
	}

	// Labels have minute resolution, so a longer interval could step over
	// a reminder's minute entirely.
	if c.Poll.Interval <= 0 || c.Poll.Interval > 60 {
		return fmt.Errorf("poll interval must be between 1 and 60 seconds, got %d", c.Poll.Interval)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s (supported: text, json)", c.Log.Format)
	}

	return nil
}

// ResetTime returns the parsed daily reset label. Call Validate first.
func (c *Config) ResetTime() timelabel.Label {
	l, _ := timelabel.Parse(c.Reminders.ResetTime)
	return l
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}

func (c *Config) TelegramTimeout() time.Duration {
	return time.Duration(c.Telegram.Timeout) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Telegram.RetryBaseMS) * time.Millisecond
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
