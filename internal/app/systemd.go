package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"hwbot/internal/watcher"
	logx "hwbot/pkg/logx"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
	sdWatchdog = daemon.SdNotifyWatchdog
)

// notifySystemd is a no-op outside systemd (NOTIFY_SOCKET unset).
func notifySystemd(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}

// watchdogInterval returns half of WATCHDOG_USEC, the usual ping period.
func watchdogInterval() (time.Duration, bool) {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d / 2, true
}

// watchdog pings systemd only while the watcher loop keeps iterating.
// The loop sleeps for minutes between polls, so liveness is judged against
// the schedule: the loop is stuck once the next expected iteration is
// overdue by more than slack.
type watchdog struct {
	last       atomic.Int64 // unix nanos of the latest heartbeat
	sched      watcher.Schedule
	errorDelay time.Duration
	slack      time.Duration
	now        func() time.Time
}

func newWatchdog(sched watcher.Schedule, errorDelay, slack time.Duration) *watchdog {
	w := &watchdog{sched: sched, errorDelay: errorDelay, slack: slack, now: time.Now}
	w.last.Store(w.now().UnixNano())
	return w
}

func (w *watchdog) beat() { w.last.Store(w.now().UnixNano()) }

func (w *watchdog) healthy() bool {
	last := time.Unix(0, w.last.Load())
	due := last.Add(w.errorDelay)
	if w.sched != nil {
		if next := w.sched.Next(last); next.After(due) {
			due = next
		}
	}
	return !w.now().After(due.Add(w.slack))
}

func (w *watchdog) run(ctx context.Context, every time.Duration, log logx.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !w.healthy() {
				log.Warn("watcher loop stalled; withholding watchdog ping",
					logx.Duration("since_beat", w.now().Sub(time.Unix(0, w.last.Load()))))
				continue
			}
			notifySystemd(log, sdWatchdog)
		}
	}
}
