// Package listen provides unbounded signal listeners. Unlike sync sequences
// they have no phases or deadlines: every matching signal becomes one event
// and a closed stream is followed by a reconnect.
package listen

import (
	"context"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	appsync "github.com/jbctechsolutions/connectsync/internal/application/sync"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/tracing"
)

// Sources reported in DevicesChanged events emitted by the listener itself.
const (
	SourceConnected   = "connected"
	SourceStreamEnded = "stream_ended"
)

// AnyMember matches every member of an interface.
const AnyMember = "*"

// Match is one allow-list entry.
type Match struct {
	Interface string
	Member    string // AnyMember for the whole interface
}

func (m Match) allows(msg bus.Message) bool {
	return m.Interface == msg.Interface && (m.Member == AnyMember || m.Member == msg.Member)
}

// DecodeFunc turns an allowed signal into an event. It returns false for
// signals that should be skipped. key, when non-nil, is checked against the
// dedup gate before the event is emitted.
type DecodeFunc func(msg bus.Message, now time.Time) (evt syncdomain.Event, key *ports.DedupKey, ok bool)

// EnrichFunc adds data that needs a bus call, such as a device name.
type EnrichFunc func(ctx context.Context, conn ports.BusConnection, evt syncdomain.Event) syncdomain.Event

// Spec describes one listener.
type Spec struct {
	Name   string
	Rules  []bus.MatchRule
	Allow  []Match
	Decode DecodeFunc
	Enrich EnrichFunc
}

func (s Spec) allowed(msg bus.Message) bool {
	if !msg.IsSignal() {
		return false
	}
	for _, m := range s.Allow {
		if m.allows(msg) {
			return true
		}
	}
	return false
}

// Option configures a Listener.
type Option func(*Listener)

// WithGate sets the dedup gate. Without one every event is emitted.
func WithGate(g ports.DedupGate) Option {
	return func(l *Listener) { l.gate = g }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(l *Listener) { l.tracer = t }
}

// WithRetryDelay sets the wait before reconnecting after a failed connect.
func WithRetryDelay(d time.Duration) Option {
	return func(l *Listener) { l.retryDelay = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

// Listener is a pull-driven, never-ending event source. It is not safe for
// concurrent use.
type Listener struct {
	provider   ports.BusProvider
	spec       Spec
	gate       ports.DedupGate
	logger     *logging.Logger
	tracer     *tracing.Tracer
	retryDelay time.Duration
	now        func() time.Time

	conn    ports.BusConnection
	signals <-chan bus.Message
	span    *tracing.ListenerSpan
	backoff bool
	closed  bool
}

// New creates a listener for spec. It does not connect.
func New(provider ports.BusProvider, spec Spec, opts ...Option) *Listener {
	l := &Listener{
		provider:   provider,
		spec:       spec,
		logger:     logging.Default(),
		tracer:     tracing.Default(),
		retryDelay: appsync.DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the spec name.
func (l *Listener) Name() string { return l.spec.Name }

// Next blocks until the next event. It returns false only after Close or
// when ctx ends.
func (l *Listener) Next(ctx context.Context) (syncdomain.Event, bool) {
	if l.closed {
		return nil, false
	}
	ctx = logging.WithListener(ctx, l.spec.Name)

	if l.conn == nil {
		return l.connect(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			l.Close()
			return nil, false
		case msg, open := <-l.signals:
			if !open {
				return l.streamEnded(ctx), true
			}
			if evt, ok := l.handle(ctx, msg); ok {
				return evt, true
			}
		}
	}
}

// Run publishes every event to sink until ctx ends.
func (l *Listener) Run(ctx context.Context, sink ports.EventSink) {
	defer l.Close()
	for {
		evt, ok := l.Next(ctx)
		if !ok {
			return
		}
		sink.Publish(evt)
	}
}

// Close releases the connection.
func (l *Listener) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.release(nil)
}

func (l *Listener) connect(ctx context.Context) (syncdomain.Event, bool) {
	if l.backoff {
		l.backoff = false
		if !sleep(ctx, l.retryDelay) {
			l.Close()
			return nil, false
		}
	}

	conn, err := l.provider.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			l.Close()
			return nil, false
		}
		logging.LogBusReconnect(ctx, l.logger, err, l.retryDelay)
		l.backoff = true
		return syncdomain.Error{
			Err:         domerrors.Transport(l.spec.Name+": connect to session bus", err),
			Recoverable: true,
		}, true
	}

	l.conn = conn
	appsync.RegisterMatches(ctx, conn, l.spec.Rules, l.logger)
	l.signals = conn.Signals()
	_, l.span = l.tracer.StartListenerSpan(ctx, l.spec.Name, len(l.spec.Rules))
	l.logger.DebugContext(ctx, "listener started", "rules", len(l.spec.Rules))

	return syncdomain.DevicesChanged{Source: SourceConnected}, true
}

func (l *Listener) handle(ctx context.Context, msg bus.Message) (syncdomain.Event, bool) {
	if !l.spec.allowed(msg) {
		return nil, false
	}
	evt, key, ok := l.spec.Decode(msg, l.now())
	if !ok {
		logging.LogSignalDiscarded(ctx, l.logger, msg.Name(), msg.Path, "undecodable")
		return nil, false
	}

	if key != nil && l.gate != nil {
		seen, err := l.gate.CheckAndMark(ctx, *key)
		switch {
		case err != nil:
			// A broken gate must not swallow notifications.
			l.logger.WarnContext(ctx, "dedup check failed", "class", string(key.Class), "error", err.Error())
		case seen:
			l.logger.DebugContext(ctx, "duplicate suppressed", "class", string(key.Class), "identity", key.Identity)
			return nil, false
		}
	}

	if l.spec.Enrich != nil {
		evt = l.spec.Enrich(ctx, l.conn, evt)
	}
	l.span.Emitted(evt.Kind())
	return evt, true
}

func (l *Listener) streamEnded(ctx context.Context) syncdomain.Event {
	l.logger.WarnContext(ctx, "signal stream ended, reconnecting")
	l.release(domerrors.ErrStreamClosed)
	return syncdomain.DevicesChanged{Source: SourceStreamEnded}
}

func (l *Listener) release(cause error) {
	if l.span != nil {
		l.span.End(cause)
		l.span = nil
	}
	if l.conn == nil {
		return
	}
	if err := l.conn.Close(); err != nil {
		l.logger.Debug("close connection", "listener", l.spec.Name, "error", err.Error())
	}
	l.conn = nil
	l.signals = nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
