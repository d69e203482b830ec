package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvReviewToken   = "PRAKTIKUM_TOKEN"
	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvChatID        = "TELEGRAM_CHAT_ID"
	EnvReviewAPIURL  = "REVIEW_API_URL"
	EnvLogLevel      = "LOG_LEVEL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overlays non-empty environment values onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Review.Token, EnvReviewToken)
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Telegram.ChatID, EnvChatID)
	set(&cfg.Review.APIURL, EnvReviewAPIURL)
	set(&cfg.Logging.Level, EnvLogLevel)
}
