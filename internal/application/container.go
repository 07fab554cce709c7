// Package application wires connectsync's services together.
package application

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/adapters/dbus"
	"github.com/jbctechsolutions/connectsync/internal/adapters/dedup"
	"github.com/jbctechsolutions/connectsync/internal/application/notify"
	"github.com/jbctechsolutions/connectsync/internal/application/observability"
	"github.com/jbctechsolutions/connectsync/internal/application/peer"
	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	appsync "github.com/jbctechsolutions/connectsync/internal/application/sync"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/storage"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/tracing"
)

// Option configures a Container.
type Option func(*Container)

// WithVerbose forces debug logging regardless of config.
func WithVerbose(v bool) Option {
	return func(c *Container) { c.verbose = v }
}

// WithBusProvider replaces the session bus provider.
func WithBusProvider(p ports.BusProvider) Option {
	return func(c *Container) { c.provider = p }
}

// WithLogOutput sends logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(c *Container) { c.logOutput = w }
}

// Container holds all application dependencies and provides a central
// point for dependency injection. The dedup gate and the history store are
// opened on first use; most commands never need them.
type Container struct {
	mu     sync.RWMutex
	config *config.Config

	verbose   bool
	logOutput io.Writer

	logger *logging.Logger
	tracer *tracing.Tracer

	provider ports.BusProvider
	shared   *dbus.SharedConnection

	gateOnce sync.Once
	gate     ports.DedupGate
	gateErr  error

	historyOnce sync.Once
	history     ports.MetricsStoragePort
	historyErr  error

	notifyMu sync.Mutex
	notifier *notify.Service

	watcher *config.Watcher
}

// NewContainer creates a container for cfg. A nil cfg uses the defaults.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, domerrors.NewError(domerrors.CodeConfiguration, "invalid configuration", err)
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initObservability(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if c.provider == nil {
		c.provider = dbus.NewSessionBusProvider(cfg.Bus.Address, c.logger, c.tracer)
	}
	c.shared = dbus.NewSharedConnection(c.provider)

	return c, nil
}

func logLevel(name string) logging.Level {
	switch name {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func (c *Container) initObservability() error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logLevel(c.config.Logging.Level)
	if c.verbose {
		logCfg.Level = logging.LevelDebug
	}
	if c.config.Logging.Format == "json" {
		logCfg.Format = logging.FormatJSON
	}
	if c.logOutput != nil {
		logCfg.Output = c.logOutput
	}
	c.logger = logging.New(logCfg)

	if !c.config.Tracing.Enabled {
		c.tracer = tracing.Default()
		return nil
	}
	tracer, err := tracing.New(context.Background(), tracing.Config{
		Enabled:      true,
		ExporterType: tracing.ExporterType(c.config.Tracing.ExporterType),
		OTLPEndpoint: c.config.Tracing.OTLPEndpoint,
		ServiceName:  c.config.Tracing.ServiceName,
		Environment:  "production",
		SampleRate:   c.config.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	c.tracer = tracer
	return nil
}

// Config returns the current configuration.
func (c *Container) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// Logger returns the logger.
func (c *Container) Logger() *logging.Logger { return c.logger }

// Tracer returns the tracer.
func (c *Container) Tracer() *tracing.Tracer { return c.tracer }

// BusProvider returns the provider sequences and listeners connect through.
func (c *Container) BusProvider() ports.BusProvider { return c.provider }

// SharedConnection returns the connection used for outbound calls.
func (c *Container) SharedConnection() *dbus.SharedConnection { return c.shared }

// ResolveDevice returns id, or the configured default device when id is empty.
func (c *Container) ResolveDevice(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if d := c.Config().DefaultDevice; d != "" {
		return d, nil
	}
	return "", domerrors.NewError(domerrors.CodeValidation,
		"no device given and default_device is not configured", domerrors.ErrInvalidTarget)
}

func timeouts(t config.TimeoutsConfig) syncdomain.Timeouts {
	return syncdomain.Timeouts{
		Hard:         t.Hard,
		ColdPeerWait: t.ColdPeerWait,
		WarmPeerWait: t.WarmPeerWait,
		Activity:     t.Activity,
	}
}

// Profile builds the sync profile for target: the conversation list when
// no thread is given, otherwise that thread.
func (c *Container) Profile(target syncdomain.Target) (appsync.Profile, error) {
	if target.DeviceID == "" || target.ThreadID < 0 {
		return nil, domerrors.WithContext(
			domerrors.NewError(domerrors.CodeValidation, "invalid sync target", domerrors.ErrInvalidTarget),
			"target", target.String())
	}
	cfg := c.Config()
	if !target.ThreadScoped() {
		return appsync.NewConversationList(target.DeviceID, timeouts(cfg.Sync.List)), nil
	}
	return appsync.NewConversationThread(target.DeviceID, target.ThreadID, cfg.Sync.MessagesPerPage, timeouts(cfg.Sync.Thread)), nil
}

// NewSequence creates a sync sequence for target. It does not connect.
func (c *Container) NewSequence(target syncdomain.Target, opts ...appsync.Option) (*appsync.Sequence, error) {
	profile, err := c.Profile(target)
	if err != nil {
		return nil, err
	}
	base := []appsync.Option{
		appsync.WithLogger(c.logger),
		appsync.WithTracer(c.tracer),
		appsync.WithRetryDelay(c.Config().Bus.RetryDelay),
	}
	return appsync.NewSequence(c.provider, profile, append(base, opts...)...), nil
}

// StartSync runs a sequence for target in the background, publishing every
// event to sink. It returns the sequence id.
func (c *Container) StartSync(ctx context.Context, target syncdomain.Target, sink ports.EventSink) (string, error) {
	seq, err := c.NewSequence(target)
	if err != nil {
		return "", err
	}
	obs := c.ObserveSync(seq)
	go func() {
		defer func() { _ = obs.Finish(ctx) }()
		for evt := range seq.All(ctx) {
			obs.Publish(evt)
			sink.Publish(evt)
		}
	}()
	return seq.ID(), nil
}

// History opens the sync history store on first call and prunes runs older
// than history.retention. It returns nil when history is disabled.
func (c *Container) History() (ports.MetricsStoragePort, error) {
	c.historyOnce.Do(func() {
		cfg := c.Config().History
		if !cfg.Enabled {
			return
		}
		conn, err := storage.NewConnection(cfg.Path)
		if err != nil {
			c.historyErr = err
			return
		}
		if err := conn.Open(); err != nil {
			c.historyErr = domerrors.NewError(domerrors.CodeStorage, "open history database", err)
			return
		}
		repo := storage.NewMetricsRepository(conn)
		if cfg.Retention > 0 {
			n, err := repo.Prune(context.Background(), time.Now().Add(-cfg.Retention))
			if err != nil {
				c.logger.Warn("history prune failed", "error", err.Error())
			} else if n > 0 {
				c.logger.Debug("history pruned", "count", n)
			}
		}
		c.history = repo
	})
	return c.history, c.historyErr
}

// ObserveSync returns an observer that records seq's outcome when finished.
// An unavailable history store only disables recording.
func (c *Container) ObserveSync(seq *appsync.Sequence) *observability.SyncObserver {
	store, err := c.History()
	if err != nil {
		c.logger.Warn("sync history unavailable", "error", err.Error())
	}
	svc := observability.NewService(observability.ServiceConfig{
		Logger:         c.logger,
		MetricsStorage: store,
	})
	return svc.StartSync(seq.ID(), seq.Profile().Name(), seq.Profile().Target())
}

// WithBus runs fn with a lease on the shared connection.
func (c *Container) WithBus(ctx context.Context, fn func(conn ports.BusConnection) error) error {
	lease, err := c.shared.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := lease.Close(); cerr != nil {
			c.logger.Debug("release shared connection", "error", cerr.Error())
		}
	}()
	return fn(lease)
}

// Send sends body to deviceID, replying into threadID when it is set and
// starting a new conversation with recipient otherwise.
func (c *Container) Send(ctx context.Context, deviceID string, threadID int64, recipient, body string) error {
	return c.WithBus(ctx, func(conn ports.BusConnection) error {
		sender := peer.NewSender(conn, deviceID, c.logger)
		if threadID != 0 {
			return sender.Reply(ctx, threadID, body)
		}
		return sender.SendNew(ctx, recipient, body)
	})
}

// DedupGate opens the configured dedup store on first call.
func (c *Container) DedupGate() (ports.DedupGate, error) {
	c.gateOnce.Do(func() {
		cfg := c.Config().Dedup
		c.gate, c.gateErr = dedup.New(dedup.Options{
			Backend: cfg.Backend,
			Path:    cfg.Path,
			Window:  cfg.Window,
		})
		if c.gateErr == nil {
			c.logger.Debug("dedup gate opened", "backend", cfg.Backend)
		}
	})
	return c.gate, c.gateErr
}

// NotificationSettings converts the notifications config section.
func NotificationSettings(n config.NotificationsConfig) notify.Settings {
	return notify.Settings{
		SMS:              n.SMS,
		Calls:            n.Calls,
		Files:            n.Files,
		Devices:          n.Devices,
		ShowSender:       n.SMSShowSender,
		ShowContent:      n.SMSShowContent,
		ShowCallerName:   n.CallShowName,
		ShowCallerNumber: n.CallShowNumber,
		Timeout:          time.Duration(n.TimeoutSecs) * time.Second,
		RefreshDebounce:  n.RefreshDebounce,
	}.Normalize()
}

// NotifyService creates the listener service with the dedup gate and the
// configured settings. Later config reloads update its settings.
func (c *Container) NotifyService(opts ...notify.Option) (*notify.Service, error) {
	gate, err := c.DedupGate()
	if err != nil {
		return nil, err
	}
	cfg := c.Config()
	base := []notify.Option{
		notify.WithGate(gate),
		notify.WithLogger(c.logger),
		notify.WithTracer(c.tracer),
		notify.WithRetryDelay(cfg.Bus.RetryDelay),
		notify.WithSettings(NotificationSettings(cfg.Notifications)),
	}
	svc := notify.NewService(c.provider, append(base, opts...)...)

	c.notifyMu.Lock()
	c.notifier = svc
	c.notifyMu.Unlock()
	return svc, nil
}

// RunPruner prunes the dedup store on the configured interval until ctx
// ends. It is a no-op when retention or interval is zero.
func (c *Container) RunPruner(ctx context.Context) error {
	gate, err := c.DedupGate()
	if err != nil {
		return err
	}
	cfg := c.Config().Dedup
	if cfg.Retention <= 0 || cfg.PruneInterval <= 0 {
		return nil
	}
	go dedup.RunPruner(ctx, gate, cfg.Retention, cfg.PruneInterval, c.logger)
	return nil
}

// WatchConfig reloads the config file at path (the loader's default when
// empty) and applies log level and notification settings without a restart.
// Changes to other sections take effect on the next start.
func (c *Container) WatchConfig(loader *config.Loader, path string) error {
	w, err := config.NewWatcher(loader, path, config.DefaultWatchDebounce, c.logger)
	if err != nil {
		return err
	}
	w.Subscribe(c.ApplyConfig)
	if err := w.Start(); err != nil {
		_ = w.Close()
		return err
	}
	c.watcher = w
	return nil
}

// ApplyConfig swaps in cfg and updates the parts that can change at runtime.
func (c *Container) ApplyConfig(cfg *config.Config) {
	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()

	if !c.verbose {
		c.logger.SetLevel(logLevel(cfg.Logging.Level))
	}

	c.notifyMu.Lock()
	svc := c.notifier
	c.notifyMu.Unlock()
	if svc != nil {
		svc.UpdateSettings(NotificationSettings(cfg.Notifications))
	}
}

// Close releases the watcher, the stores and the tracer.
func (c *Container) Close() error {
	var errs []error
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close config watcher: %w", err))
		}
	}
	if c.gate != nil {
		if err := c.gate.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dedup gate: %w", err))
		}
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if c.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
