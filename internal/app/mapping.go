package app

import (
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/reviewapi"
	kit "hwbot/internal/transport"
	"hwbot/internal/watcher"
	logx "hwbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logTarget picks the chat for the log sink: group_log if set, else the
// notification chat.
func logTarget(cfg *config.Config) (int64, int, bool) {
	raw := cfg.Telegram.GroupLog
	if strings.TrimSpace(raw) == "" {
		raw = cfg.Telegram.ChatID
	}
	id, err := config.ParseChatID("telegram.group_log", raw)
	if err != nil {
		return 0, 0, false
	}
	return id, cfg.Logging.Telegram.ThreadID, true
}

func mapReviewConfig(cfg *config.Config) (reviewapi.Config, error) {
	timeout, err := config.ParseDurationOrDefault("review.request_timeout", cfg.Review.RequestTimeout, reviewapi.DefaultTimeout)
	if err != nil {
		return reviewapi.Config{}, err
	}
	return reviewapi.Config{
		BaseURL: strings.TrimSpace(cfg.Review.APIURL),
		Token:   strings.TrimSpace(cfg.Review.Token),
		Timeout: timeout,
	}, nil
}

func mapWatcherConfig(cfg *config.Config) (watcher.Config, error) {
	chatID, err := config.ParseChatID("telegram.chat_id", cfg.Telegram.ChatID)
	if err != nil {
		return watcher.Config{}, err
	}
	sched, err := watcher.ParseSchedule(cfg.Review.Interval)
	if err != nil {
		return watcher.Config{}, err
	}
	errDelay, err := config.ParseDurationOrDefault("review.error_delay", cfg.Review.ErrorDelay, watcher.DefaultErrorDelay)
	if err != nil {
		return watcher.Config{}, err
	}
	return watcher.Config{
		Chat:       kit.ChatTarget{ChatID: chatID, ThreadID: cfg.Telegram.ThreadID},
		Interval:   sched,
		ErrorDelay: errDelay,
	}, nil
}

// watchdogSlack covers one worst-case iteration: the API call plus a
// status message and a failure notice.
func watchdogSlack(cfg *config.Config) time.Duration {
	req, _ := config.ParseDurationOrDefault("review.request_timeout", cfg.Review.RequestTimeout, reviewapi.DefaultTimeout)
	tg, _ := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second)
	return req + 2*tg + 30*time.Second
}
