package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"console": false,
		"telegram": map[string]interface{}{
			"token":          "",
			"base_url":       "https://api.telegram.org/bot",
			"chat_id":        "",
			"timeout":        30,
			"retry_attempts": 4,
			"retry_base_ms":  500,
		},
		"database": map[string]interface{}{
			"dsn": "~/.reminder-bot/reminders.db",
		},
		"reminders": map[string]interface{}{
			"snooze_minutes": 10,
			"reset_time":     "0300",
			"delimiter":      "|",
		},
		"poll": map[string]interface{}{
			"interval": 60,
		},
		"commands": map[string]interface{}{
			"report_errors": false,
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "text",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.reminder-bot/config.yaml"
}
