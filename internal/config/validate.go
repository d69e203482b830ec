package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrMissingTelegramToken = errors.New("telegram.token is required (or set " + EnvTelegramToken + ")")
	ErrMissingReviewToken   = errors.New("review.token is required (or set " + EnvReviewToken + ")")
)

// Validate checks everything that can be checked without building the
// runtime components.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return ErrMissingTelegramToken
	}
	if strings.TrimSpace(cfg.Review.Token) == "" {
		return ErrMissingReviewToken
	}
	if _, err := ParseChatID("telegram.chat_id", cfg.Telegram.ChatID); err != nil {
		return err
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := ParseChatID("telegram.group_log", g); err != nil {
			return err
		}
	}
	if u := strings.TrimSpace(cfg.Review.APIURL); u != "" {
		pu, err := url.Parse(u)
		if err != nil || pu.Scheme == "" || pu.Host == "" {
			return fmt.Errorf("review.api_url: invalid url %q", u)
		}
	}
	for path, raw := range map[string]string{
		"telegram.timeout":       cfg.Telegram.Timeout,
		"review.request_timeout": cfg.Review.RequestTimeout,
		"review.error_delay":     cfg.Review.ErrorDelay,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		return fmt.Errorf("logging.telegram.rate_per_sec must be >= 0")
	}
	return nil
}
