package app

import (
	"context"
	"strings"

	"hwbot/internal/config"
	logx "hwbot/pkg/logx"
)

// changedSections lists top-level sections that differ between old and
// next.
func changedSections(old, next *config.Config) []string {
	if old == nil || next == nil {
		return nil
	}
	var out []string
	if old.Telegram != next.Telegram {
		out = append(out, "telegram")
	}
	if old.Review != next.Review {
		out = append(out, "review")
	}
	if old.Logging != next.Logging {
		out = append(out, "logging")
	}
	return out
}

// reloadLoop applies logging changes live. Everything else is wired into
// long-lived components at construction and only takes effect on restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(prev, next)
			prev = next
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	changed := changedSections(prev, next)
	if len(changed) == 0 {
		return
	}
	var pending []string
	for _, sec := range changed {
		switch sec {
		case "logging":
			if a.logs == nil {
				continue
			}
			if chatID, threadID, ok := logTarget(next); ok {
				a.logs.SetTelegramTarget(chatID, threadID)
			}
			if err := a.logs.Apply(mapLogConfig(next)); err != nil {
				a.log.Warn("log sink unavailable", logx.Err(err))
			}
		default:
			pending = append(pending, sec)
		}
	}
	a.log.Info("config reloaded", logx.String("changed", strings.Join(changed, ",")))
	if len(pending) > 0 {
		a.log.Warn("restart required to apply config", logx.String("sections", strings.Join(pending, ",")))
	}
}
