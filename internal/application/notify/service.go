// Package notify runs the unbounded listeners and turns their events into
// notifications and device refreshes.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/listen"
	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/tracing"
)

// Notifier receives rendered notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Option configures a Service.
type Option func(*Service)

// WithGate sets the dedup gate shared by all listeners.
func WithGate(g ports.DedupGate) Option { return func(s *Service) { s.gate = g } }

// WithSink sets where raw events are published.
func WithSink(sink ports.EventSink) Option { return func(s *Service) { s.sink = sink } }

// WithNotifier sets where rendered notifications go.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option { return func(s *Service) { s.logger = l } }

// WithTracer sets the tracer handed to listeners.
func WithTracer(t *tracing.Tracer) Option { return func(s *Service) { s.tracer = t } }

// WithRetryDelay sets the listeners' reconnect delay.
func WithRetryDelay(d time.Duration) Option { return func(s *Service) { s.retryDelay = d } }

// WithSettings sets the initial settings.
func WithSettings(st Settings) Option {
	return func(s *Service) { s.settings.Store(ptr(st.Normalize())) }
}

// WithSpecs replaces the default listener set.
func WithSpecs(specs ...listen.Spec) Option { return func(s *Service) { s.specs = specs } }

// Service fans the listeners into one sink. Settings can be swapped while
// it runs; disabled classes are filtered when events are handled.
type Service struct {
	provider   ports.BusProvider
	gate       ports.DedupGate
	sink       ports.EventSink
	notifier   Notifier
	logger     *logging.Logger
	tracer     *tracing.Tracer
	retryDelay time.Duration
	specs      []listen.Spec
	settings   atomic.Pointer[Settings]

	mu      sync.Mutex
	refresh *time.Timer
	gen     uint64 // Bumped per scheduled refresh; older timers drop out
	pending syncdomain.DevicesChanged
	stopped bool
}

// NewService creates a service over provider.
func NewService(provider ports.BusProvider, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		sink:     ports.MultiSink(nil),
		notifier: NotifierFunc(func(context.Context, Notification) {}),
		logger:   logging.Default(),
		tracer:   tracing.Default(),
		specs: []listen.Spec{
			listen.DeviceRefresh(),
			listen.FileShare(),
			listen.SmsReceived(),
			listen.CallReceived(),
		},
	}
	s.settings.Store(ptr(DefaultSettings()))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func ptr[T any](v T) *T { return &v }

// Settings returns the current settings.
func (s *Service) Settings() Settings { return *s.settings.Load() }

// UpdateSettings replaces the settings. It is safe to call while Run is active.
func (s *Service) UpdateSettings(st Settings) {
	s.settings.Store(ptr(st.Normalize()))
	s.logger.Info("notification settings updated")
}

// Run starts one goroutine per listener and blocks until ctx ends.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, spec := range s.specs {
		l := listen.New(s.provider, spec,
			listen.WithGate(s.gate),
			listen.WithLogger(s.logger),
			listen.WithTracer(s.tracer),
			listen.WithRetryDelay(s.retryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Run(ctx, ports.EventSinkFunc(func(evt syncdomain.Event) {
				s.Handle(ctx, evt)
			}))
		}()
	}
	s.logger.InfoContext(ctx, "listeners started", "count", len(s.specs))
	wg.Wait()
	s.stop()
}

// Handle routes one listener event.
func (s *Service) Handle(ctx context.Context, evt syncdomain.Event) {
	st := s.Settings()
	switch e := evt.(type) {
	case syncdomain.DevicesChanged:
		if st.Devices {
			s.scheduleRefresh(e, st.RefreshDebounce)
		}
		return
	case syncdomain.Error:
		s.logger.WarnContext(ctx, "listener error", "error", e.Message(), "recoverable", e.Recoverable)
		s.sink.Publish(e)
		return
	}

	n, ok := Render(evt, st)
	if !ok {
		return
	}
	logging.LogNotification(ctx, s.logger, n.Kind, n.DeviceID)
	s.sink.Publish(evt)
	s.notifier.Notify(ctx, n)
}

// scheduleRefresh publishes the latest refresh once no other refresh has
// arrived for the debounce interval.
func (s *Service) scheduleRefresh(e syncdomain.DevicesChanged, debounce time.Duration) {
	if debounce <= 0 {
		s.sink.Publish(e)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = e
	// A timer that already fired may be waiting on s.mu; the generation
	// check makes it a no-op instead of a second publish.
	if s.refresh != nil {
		s.refresh.Stop()
	}
	s.gen++
	gen := s.gen
	s.refresh = time.AfterFunc(debounce, func() { s.flushRefresh(gen) })
}

func (s *Service) flushRefresh(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	e := s.pending
	s.refresh = nil
	s.mu.Unlock()
	s.sink.Publish(e)
}

func (s *Service) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.refresh != nil {
		s.refresh.Stop()
		s.refresh = nil
	}
}
