package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/eventbus"
	"hwbot/internal/notifier"
	"hwbot/internal/poll"
	"hwbot/internal/practicum"
	"hwbot/internal/runtime/supervisor"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
	"hwbot/pkg/systemd"
)

// App wires the poll loop, the Telegram transport and their supporting
// services, and owns their lifecycle.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	sd   *systemd.Notifier

	adapter kit.Adapter
	notif   *notifier.Service
	fetch   poll.Fetcher
	ctrl    *poll.Controller
	runner  *poll.Runner

	status   *statusBoard
	chatID   atomic.Int64
	commands bool

	updates chan kit.Message
}

type options struct {
	adapter kit.Adapter
	fetch   poll.Fetcher
	log     *logx.Service
}

type Option func(*options)

// WithAdapter replaces the Telegram adapter, for tests.
func WithAdapter(a kit.Adapter) Option { return func(o *options) { o.adapter = a } }

// WithFetcher replaces the review API client, for tests.
func WithFetcher(f poll.Fetcher) Option { return func(o *options) { o.fetch = f } }

// WithLogService reuses an already configured log service.
func WithLogService(s *logx.Service) Option { return func(o *options) { o.log = s } }

// New builds the app from the manager's committed config. Credentials must
// already be present; see config.MissingCredentials.
func New(cfgm *config.Manager, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfg := cfgm.Get()
	if cfg == nil {
		var err error
		if cfg, err = cfgm.Load(); err != nil {
			return nil, err
		}
	}
	if missing := config.MissingCredentials(cfg); len(missing) > 0 {
		return nil, fmt.Errorf("missing credentials: %v", missing)
	}

	logSvc := o.log
	if logSvc == nil {
		logSvc, _ = logx.New(mapLogConfig(cfg))
	}
	root := logSvc.Logger()
	log := root.With(logx.String("comp", "app"))

	sched, policy, err := mapPollConfig(cfg)
	if err != nil {
		return nil, err
	}

	ad := o.adapter
	if ad == nil {
		tcfg, err := mapTelegramConfig(cfg)
		if err != nil {
			return nil, err
		}
		tg, err := telegram.New(tcfg, root.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		ad = tg
	}

	fetch := o.fetch
	if fetch == nil {
		pcfg, err := mapPracticumConfig(cfg)
		if err != nil {
			return nil, err
		}
		fetch = practicum.New(pcfg, root.With(logx.String("comp", "practicum")))
	}

	bus := eventbus.New()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, ad, root.With(logx.String("comp", "notifier")), bus)

	pollLog := root.With(logx.String("comp", "poll"))
	ctrl := poll.NewController(policy, fetch, notif, pollLog)
	runner := poll.NewRunner(ctrl, poll.NewDeduplicator(notif, pollLog), sched, bus, pollLog)

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		sd:       &systemd.Notifier{Log: root.With(logx.String("comp", "systemd"))},
		adapter:  ad,
		notif:    notif,
		fetch:    fetch,
		ctrl:     ctrl,
		runner:   runner,
		status:   newStatusBoard(time.Now(), sched, policy),
		commands: cfg.Telegram.CommandsEnabled(),
		updates:  make(chan kit.Message, 64),
	}
	a.chatID.Store(cfg.Telegram.ChatID)
	return a, nil
}

// Logger returns the app's root logger.
func (a *App) Logger() logx.Logger { return a.logs.Logger() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if missing := config.MissingCredentials(cfg); len(missing) > 0 {
			return fmt.Errorf("missing credentials: %v", missing)
		}
		return Check(cfg)
	})

	if a.commands {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.sup.Go0("commands.dispatch", a.commandLoop)
	}

	// subscribe before the first cycle runs so its event is not missed
	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("status.track", func(c context.Context) {
		defer unsub()
		a.statusLoop(c, events)
	})

	a.sup.Go("poll.loop", a.runner.Run)

	reload := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(reload)
		a.reloadLoop(c, reload)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", a.sd.Watchdog)

	a.sd.Ready()
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("schedule", a.status.schedule),
		logx.String("policy", string(a.status.policy)),
		logx.Bool("commands", a.commands),
	)
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// cancel first so the poll loop and watchers unwind while we stop the rest
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	if a.commands {
		step("adapter", 3*time.Second, a.adapter.Stop)
	}
	step("supervisor", 5*time.Second, a.sup.Wait)
	if c, ok := a.fetch.(interface{ Close() }); ok {
		step("practicum", time.Second, func(context.Context) error { c.Close(); return nil })
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
