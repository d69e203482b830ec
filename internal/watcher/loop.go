// Package watcher runs the poll → format → notify loop.
//
// One Loop owns one cursor. Each iteration asks the review API for
// statuses changed since the cursor, reports the most recent one to the
// configured chat, and moves the cursor to the server's current_date.
// Failures are reported to the same chat and retried after a short delay;
// the loop itself never stops until its context is cancelled.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"hwbot/internal/homework"
	"hwbot/internal/reviewapi"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

const (
	DefaultInterval   = 300 * time.Second
	DefaultErrorDelay = 5 * time.Second

	failurePrefix = "Бот столкнулся с ошибкой: "
)

// Fetcher is the poll side of the loop. *reviewapi.Client implements it.
type Fetcher interface {
	FetchStatuses(ctx context.Context, from *int64) (*homework.PollResult, error)
}

type Config struct {
	// Chat is where both status updates and failure notices go.
	Chat       kit.ChatTarget
	Interval   Schedule
	ErrorDelay time.Duration
}

// Outcome describes a successful iteration.
type Outcome struct {
	Notified bool
	Homework string
	Cursor   *int64
}

type Option func(*Loop)

// WithClock replaces time.Now (cursor seed and schedule evaluation).
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// WithSleeper replaces the context-aware sleep between iterations.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) { l.sleep = fn }
}

// WithStartCursor seeds the cursor instead of "now".
func WithStartCursor(ts int64) Option {
	return func(l *Loop) { l.cursor = &ts }
}

// WithHeartbeat registers fn to be called at the start of every iteration.
func WithHeartbeat(fn func()) Option { return func(l *Loop) { l.heartbeat = fn } }

type Loop struct {
	cfg   Config
	fetch Fetcher
	send  kit.Sender
	log   logx.Logger

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	heartbeat func()

	// cursor is only touched by the goroutine running Run/RunOnce.
	cursor *int64
}

func New(cfg Config, fetch Fetcher, send kit.Sender, log logx.Logger, opts ...Option) *Loop {
	if cfg.Interval == nil {
		cfg.Interval, _ = ParseSchedule("")
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = DefaultErrorDelay
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{
		cfg:   cfg,
		fetch: fetch,
		send:  send,
		log:   log,
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, o := range opts {
		o(l)
	}
	if l.cursor == nil {
		ts := l.now().Unix()
		l.cursor = &ts
	}
	return l
}

// Cursor returns a copy of the current cursor (nil when the last response
// carried no current_date).
func (l *Loop) Cursor() *int64 { return copyTS(l.cursor) }

// RunOnce performs a single poll → format → notify → advance step.
// On error the cursor is left untouched.
func (l *Loop) RunOnce(ctx context.Context) (Outcome, error) {
	log := l.log.With(logx.String("iter", uuid.NewString()))

	res, err := l.fetch.FetchStatuses(ctx, l.cursor)
	if err == nil && res == nil {
		err = errNoResult
	}
	if err != nil {
		return Outcome{Cursor: l.Cursor()}, &StageError{Stage: StagePoll, Err: err}
	}

	var out Outcome
	if rec, ok := res.Latest(); ok {
		msg, err := homework.FormatStatus(rec, log)
		if err != nil {
			return Outcome{Cursor: l.Cursor()}, &StageError{Stage: StageFormat, Err: err}
		}
		// The destination is always the configured chat.
		if _, err := l.send.SendText(ctx, l.cfg.Chat, msg, nil); err != nil {
			return Outcome{Cursor: l.Cursor()}, &StageError{Stage: StageNotify, Err: err}
		}
		log.Info("message sent", logx.String("homework", rec.Name()), logx.String("status", string(rec.Status)))
		out.Notified = true
		out.Homework = rec.Name()
	}

	l.cursor = copyTS(res.CurrentDate)
	out.Cursor = l.Cursor()
	log.Debug("iteration done", logx.Int("homeworks", len(res.Homeworks)), logx.Int64Ptr("cursor", l.cursor))
	return out, nil
}

// Run loops until ctx is cancelled and then returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	l.log.Debug("watcher started", logx.Int64Ptr("cursor", l.cursor))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.heartbeat != nil {
			l.heartbeat()
		}

		_, err := l.runSafe(ctx)

		var delay time.Duration
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.report(ctx, err)
			delay = l.cfg.ErrorDelay
		} else {
			delay = delayUntil(l.cfg.Interval, l.now())
		}

		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (l *Loop) runSafe(ctx context.Context) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Cursor: l.Cursor()}
			err = &StageError{Stage: StagePanic, Err: fmt.Errorf("%v", r), Stack: string(debug.Stack())}
		}
	}()
	return l.RunOnce(ctx)
}

// report logs err by kind and tells the chat about it. Delivery of the
// notice is best-effort.
func (l *Loop) report(ctx context.Context, err error) {
	var (
		ue *homework.UndefinedStatusError
		fe *reviewapi.FetchError
		se *StageError
	)
	trace := logx.StackTrace(0, 16)
	if errors.As(err, &se) && se.Stack != "" {
		trace = se.Stack
	}
	fields := []logx.Field{
		logx.String("stage", string(StageOf(err))),
		logx.Err(err),
		logx.Int64Ptr("cursor", l.cursor),
		logx.Stack(trace),
	}
	switch {
	case errors.As(err, &ue):
		l.log.Error("undefined homework status", append(fields, logx.String("status", string(ue.Status)))...)
	case errors.As(err, &fe):
		l.log.Error("review api request failed", append(fields, logx.String("kind", string(fe.Kind)))...)
	case StageOf(err) == StagePanic:
		l.log.Error("iteration panicked", fields...)
	case StageOf(err) == StageNotify:
		l.log.Error("notification failed", fields...)
	default:
		l.log.Error("iteration failed", fields...)
	}

	notice := failurePrefix + cause(err).Error()
	if _, sendErr := l.send.SendText(ctx, l.cfg.Chat, notice, nil); sendErr != nil {
		l.log.Warn("failure notice not delivered", logx.Err(sendErr))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func copyTS(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
