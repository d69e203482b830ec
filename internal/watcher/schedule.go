package watcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule decides when the next poll happens after a successful one.
// cron.Schedule satisfies it.
type Schedule interface {
	Next(now time.Time) time.Time
}

// ParseSchedule accepts:
//   - "" (default interval)
//   - a Go duration: "5m", "90s"
//   - a cron spec: "@every 5m", "@hourly", "*/5 * * * *"
//
// The "cron:" and "every:" prefixes force one interpretation.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return cron.Every(DefaultInterval), nil
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseEvery(strings.TrimSpace(s[len("every:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s)
	}
	if sched, err := parseEvery(s); err == nil {
		return sched, nil
	}
	return nil, fmt.Errorf("invalid schedule %q (use a duration like '5m' or cron like '*/5 * * * *')", raw)
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron schedule required")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return sched, nil
}

func parseEvery(v string) (Schedule, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("invalid interval %q: %w", v, err)
	}
	if d < time.Second {
		return nil, fmt.Errorf("interval must be >= 1s")
	}
	return cron.Every(d), nil
}

// delayUntil returns how long to wait from now until the schedule fires.
func delayUntil(s Schedule, now time.Time) time.Duration {
	d := s.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
