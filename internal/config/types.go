package config

import (
	"fmt"
	"strconv"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Review   ReviewConfig   `json:"review"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID receives status updates and failure notices.
	// A string so it can come from TELEGRAM_CHAT_ID unchanged.
	ChatID   string `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	// APIURL overrides the Bot API endpoint (local bot-api server).
	APIURL string `json:"api_url,omitempty"`
	// Timeout is a Go duration string bounding one Bot API call.
	Timeout string `json:"timeout,omitempty"`
	// GroupLog is an optional chat for the log sink (defaults to ChatID).
	GroupLog string `json:"group_log,omitempty"`
}

// ReviewConfig describes the homework review API and the polling cadence.
//
// Durations are Go duration strings (e.g. "10s", "5m").
// Interval also accepts cron specs such as "@every 5m" or "*/5 * * * *".
type ReviewConfig struct {
	APIURL         string `json:"api_url"`
	Token          string `json:"token"`
	RequestTimeout string `json:"request_timeout,omitempty"`
	Interval       string `json:"interval,omitempty"`
	ErrorDelay     string `json:"error_delay,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// Default returns the configuration used when no file is given.
// Secrets are always empty here; they come from the environment.
func Default() Config {
	return Config{
		Review: ReviewConfig{
			APIURL:         "https://praktikum.yandex.ru/api/",
			RequestTimeout: "10s",
			Interval:       "300s",
			ErrorDelay:     "5s",
		},
		Telegram: TelegramConfig{Timeout: "10s"},
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
			File:    LoggingFile{Enabled: true, Path: "./bot.log"},
			Telegram: LoggingTelegram{
				MinLevel:   "ERROR",
				RatePerSec: 1,
			},
		},
	}
}

// ParseChatID parses a Telegram chat id ("-100123", "42").
func ParseChatID(path, raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%s: required", path)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid chat id %q: %w", path, raw, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("%s: chat id must be non-zero", path)
	}
	return id, nil
}
