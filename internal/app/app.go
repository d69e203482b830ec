package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/reviewapi"
	"hwbot/internal/runtime/supervisor"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram"
	"hwbot/internal/watcher"
	logx "hwbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	sender kit.Sender
	loop   *watcher.Loop
	dog    *watchdog
}

// Options tweak construction; zero values mean production defaults.
type Options struct {
	ConfigPath string
	Lookup     config.LookupFunc
	// Sender replaces the Telegram adapter (tests).
	Sender kit.Sender
	// Fetcher replaces the review API client (tests).
	Fetcher watcher.Fetcher
	// LoopOptions are appended when building the watcher loop.
	LoopOptions []watcher.Option
}

func New(opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath, opts.Lookup)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	bootLog := logx.NewConsole("INFO")

	sender := opts.Sender
	if sender == nil {
		tgTimeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		ad, err := telegram.New(telegram.Config{
			Token:   cfg.Telegram.Token,
			URL:     strings.TrimSpace(cfg.Telegram.APIURL),
			Timeout: tgTimeout,
		}, bootLog.With(logx.String(logx.CompField, "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		bootLog.Info("telegram bot connected", logx.String("username", ad.Username()))
		sender = ad
	}

	// Bootstrap with the Telegram sink off, set its target, then apply
	// the real config so Apply() doesn't warn about a missing chat.
	logCfg := mapLogConfig(cfg)
	boot := logCfg
	boot.Telegram.Enabled = false
	logSvc, log, _ := logx.New(boot, sender)
	if chatID, threadID, ok := logTarget(cfg); ok {
		logSvc.SetTelegramTarget(chatID, threadID)
	}
	log = log.With(logx.String(logx.CompField, "app"))
	if err := logSvc.Apply(logCfg); err != nil {
		log.Warn("log sink unavailable", logx.Err(err))
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		rc, err := mapReviewConfig(cfg)
		if err != nil {
			return nil, err
		}
		client, err := reviewapi.New(rc, log.With(logx.String(logx.CompField, "reviewapi")))
		if err != nil {
			return nil, fmt.Errorf("review api: %w", err)
		}
		fetcher = client
	}

	wcfg, err := mapWatcherConfig(cfg)
	if err != nil {
		return nil, err
	}
	dog := newWatchdog(wcfg.Interval, wcfg.ErrorDelay, watchdogSlack(cfg))
	loopOpts := append([]watcher.Option{watcher.WithHeartbeat(dog.beat)}, opts.LoopOptions...)
	loop := watcher.New(wcfg, fetcher, sender, log.With(logx.String(logx.CompField, "watcher")), loopOpts...)

	cfgm.SetLogger(log.With(logx.String(logx.CompField, "config")))

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		sender: sender,
		loop:   loop,
		dog:    dog,
	}, nil
}

// Loop exposes the watcher (cursor inspection).
func (a *App) Loop() *watcher.Loop { return a.loop }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.sup.Go("watcher.loop", a.loop.Run)

	if a.cfgm.Path() != "" {
		sub := a.cfgm.Subscribe(4)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
		a.sup.GoRestart("config.watch", a.cfgm.Watch,
			supervisor.WithRestartBackoff(250*time.Millisecond, 5*time.Second))
	}

	if iv, ok := watchdogInterval(); ok {
		a.sup.Go0("systemd.watchdog", func(c context.Context) { a.dog.run(c, iv, a.log) })
	}
	notifySystemd(a.log, sdReady)

	a.log.Info("bot started", logx.Int64Ptr("cursor", a.loop.Cursor()), logx.String("config", a.cfgm.Path()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	notifySystemd(a.log, sdStopping)
	a.log.Info("stopping", logx.Int64("goroutines", a.sup.Active()))

	err := a.sup.Stop(ctx)
	if err != nil {
		a.log.Warn("stop finished with error", logx.Err(err))
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}
