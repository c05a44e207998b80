// Package app wires config, logging, history storage and the notifier into a
// single embeddable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"notifylog/internal/config"
	"notifylog/internal/eventbus"
	"notifylog/internal/mail"
	"notifylog/internal/notifier"
	"notifylog/internal/runtime/supervisor"
	"notifylog/internal/storage"
	logx "notifylog/pkg/logx"
)

// DefaultPickupDir receives .eml files when no transport is supplied.
const DefaultPickupDir = "mail"

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log    logx.Logger
	logs   *logx.Service
	bus    eventbus.Bus
	mailer mail.Transport
	notif  *notifier.Service

	mu  sync.Mutex
	sup *supervisor.Supervisor

	closeOnce sync.Once
	closeErr  error
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used by the notifier and the log sinks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New loads cfgPath and builds every component. transport may be nil, in
// which case messages are written as .eml files to mail.pickup_dir.
// The App owns transport and closes it in Close.
func New(cfgPath string, transport mail.Transport, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	if transport == nil {
		dir := strings.TrimSpace(cfg.Mail.PickupDir)
		if dir == "" {
			dir = DefaultPickupDir
		}
		pt, err := mail.NewPickupTransport(dir)
		if err != nil {
			return nil, err
		}
		transport = pt
	}

	var logOpts []logx.Option
	if o.now != nil {
		logOpts = append(logOpts, logx.WithClock(o.now))
	}
	logSvc, root := logx.New(mapLogConfig(cfg), transport, logOpts...)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root)

	bus := eventbus.New()

	var store storage.Store
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if enabled {
		if store, err = storage.Open(sc, root); err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		log.Info("history storage enabled", logx.String("driver", sc.Driver))
	}

	nopts := []notifier.Option{notifier.WithLogger(root), notifier.WithBus(bus)}
	if o.now != nil {
		nopts = append(nopts, notifier.WithClock(o.now))
	}
	// The notifier closes its transport; the log sinks still need it after
	// that, so the App keeps ownership.
	notif, err := notifier.New(mapNotifierConfig(cfg), sharedTransport{transport}, store, nopts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}
	for _, n := range mapNotifications(cfg) {
		if err := notif.Register(n); err != nil {
			_ = notif.Close(context.Background())
			_ = logSvc.Close()
			return nil, err
		}
	}
	log.Info("notifier ready",
		logx.Int("notifications", notif.Registry().Len()),
		logx.Int("days_to_wait", cfg.Notifier.DaysToWait),
	)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		mailer:  transport,
		notif:   notif,
	}, nil
}

// sharedTransport hides Close from a borrower.
type sharedTransport struct{ mail.Transport }

func (sharedTransport) Close() error { return nil }

func (a *App) Notifier() *notifier.Service { return a.notif }
func (a *App) Logger() logx.Logger         { return a.log }
func (a *App) Logs() *logx.Service         { return a.logs }
func (a *App) Bus() eventbus.Bus           { return a.bus }
func (a *App) Config() *config.Config      { return a.cfgm.Get() }

// SendNotification forwards to the notifier.
func (a *App) SendNotification(ctx context.Context, name, content, subjectSuffix string) (notifier.Outcome, error) {
	return a.notif.SendNotification(ctx, name, content, subjectSuffix)
}

// Start runs the background loops: config hot reload and event logging.
// Logging changes apply live; other sections are logged as needing a restart.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup != nil {
		return errors.New("app already started")
	}
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	a.sup = sup

	sub := a.cfgm.Subscribe(8)
	sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	events, unsub := a.bus.Subscribe(128)
	sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		var next *config.Config
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			next = cfg
		}
		// Coalesce bursts: only the newest config matters.
	drain:
		for {
			select {
			case newer := <-sub:
				if newer != nil {
					next = newer
				}
			default:
				break drain
			}
		}
		a.apply(last, next)
		last = next
	}
}

func (a *App) apply(prev, next *config.Config) {
	changed, attrs := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config change summary", fields...)

	for _, s := range changed {
		if s == "logging" {
			a.logs.Apply(mapLogConfig(next))
			break
		}
	}
	if config.RestartRequired(changed) {
		a.log.Warn("notifier config changed; restart required for changes to take effect")
	}
}

// Close stops background loops, saves the notification history, flushes the
// log sinks and closes the mail transport. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.closeOnce.Do(func() {
		var errs []error

		a.mu.Lock()
		sup := a.sup
		a.mu.Unlock()
		if sup != nil {
			if err := sup.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if err := a.notif.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := a.logs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logging: %w", err))
		}
		if err := a.mailer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mail transport: %w", err))
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
