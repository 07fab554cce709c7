package sync

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/tracing"
)

// DefaultRetryDelay is the wait before reconnecting after a failed connect.
const DefaultRetryDelay = 5 * time.Second

// Option configures a Sequence.
type Option func(*Sequence)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Sequence) { s.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Sequence) { s.tracer = t }
}

// WithRetryDelay sets the wait before reconnecting after a failed connect.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Sequence) { s.retryDelay = d }
}

// WithClock replaces time.Now for deadline arithmetic.
func WithClock(now func() time.Time) Option {
	return func(s *Sequence) { s.now = now }
}

// WithID sets the session id used in logs and traces.
func WithID(id string) Option {
	return func(s *Sequence) { s.id = id }
}

// Sequence is a lazy, pull-driven sync session. Nothing happens until the
// first call to Next; each call does just enough work to produce one event.
// A Sequence is not safe for concurrent use and cannot be restarted.
type Sequence struct {
	provider   ports.BusProvider
	profile    Profile
	logger     *logging.Logger
	tracer     *tracing.Tracer
	retryDelay time.Duration
	now        func() time.Time
	id         string

	session  *syncdomain.Session
	span     *tracing.SyncSpan
	conn     ports.BusConnection
	signals  <-chan bus.Message
	cache    []syncdomain.Item
	cached   int
	attempts int
	backoff  bool
	done     bool
}

// NewSequence creates a sequence for profile. It does not connect.
func NewSequence(provider ports.BusProvider, profile Profile, opts ...Option) *Sequence {
	s := &Sequence{
		provider:   provider,
		profile:    profile,
		logger:     logging.Default(),
		tracer:     tracing.Default(),
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
		id:         uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Sequence) ID() string { return s.id }

// Profile returns the profile driving the sequence.
func (s *Sequence) Profile() Profile { return s.profile }

// Phase returns the current phase. Before the first pull it is PhaseInit.
func (s *Sequence) Phase() syncdomain.Phase {
	if s.session == nil {
		return syncdomain.PhaseInit
	}
	return s.session.Phase()
}

// Deadlines returns the current deadlines, zero before the first pull.
func (s *Sequence) Deadlines() syncdomain.Deadlines {
	if s.session == nil {
		return syncdomain.Deadlines{}
	}
	return s.session.Deadlines()
}

// Next advances the session and returns the next event. It returns false
// once the session is done, closed or ctx is cancelled; cancellation tears
// the connection down.
func (s *Sequence) Next(ctx context.Context) (syncdomain.Event, bool) {
	if s.done {
		return nil, false
	}
	if err := ctx.Err(); err != nil {
		s.abort(err)
		return nil, false
	}
	if s.session == nil {
		s.session = syncdomain.NewSession(s.profile.Target(), s.profile.Timeouts(), s.now())
		_, s.span = s.tracer.StartSyncSpan(ctx, s.profile.Name(), s.profile.Target().DeviceID, s.profile.Target().ThreadID)
	}
	ctx = s.logContext(ctx)

	switch s.session.Phase() {
	case syncdomain.PhaseInit:
		return s.init(ctx)
	case syncdomain.PhaseEmittingCache:
		return s.emitCached(ctx), true
	case syncdomain.PhaseListening:
		return s.listen(ctx)
	default:
		return nil, false
	}
}

// All returns the remaining events as an iterator. Breaking out of the loop
// closes the sequence.
func (s *Sequence) All(ctx context.Context) iter.Seq[syncdomain.Event] {
	return func(yield func(syncdomain.Event) bool) {
		defer s.Close()
		for {
			evt, ok := s.Next(ctx)
			if !ok || !yield(evt) {
				return
			}
		}
	}
}

// Close releases the connection. Later calls to Next return false.
func (s *Sequence) Close() error {
	s.abort(domerrors.ErrSequenceClosed)
	return nil
}

func (s *Sequence) logContext(ctx context.Context) context.Context {
	target := s.profile.Target()
	ctx = logging.WithSessionID(ctx, s.id)
	ctx = logging.WithDeviceID(ctx, target.DeviceID)
	if target.ThreadScoped() {
		ctx = logging.WithThreadID(ctx, target.ThreadID)
	}
	return ctx
}

func (s *Sequence) init(ctx context.Context) (syncdomain.Event, bool) {
	if s.backoff {
		s.backoff = false
		if !sleepCtx(ctx, s.retryDelay) {
			s.abort(ctx.Err())
			return nil, false
		}
	}

	// The hard cap is absolute, so it also bounds time spent reconnecting.
	if s.attempts > 0 {
		if now := s.now(); !now.Before(s.session.Deadlines().Hard) {
			return s.complete(ctx, now, syncdomain.ReasonHard), true
		}
	}
	s.attempts++

	conn, err := s.provider.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.abort(ctx.Err())
			return nil, false
		}
		logging.LogBusReconnect(ctx, s.logger, err, s.retryDelay)
		s.backoff = true
		return syncdomain.Error{
			Target:      s.profile.Target(),
			Err:         domerrors.Transport("connect to session bus", err),
			Recoverable: true,
		}, true
	}
	s.conn = conn

	RegisterMatches(ctx, conn, s.profile.Rules(), s.logger)
	s.signals = conn.Signals()

	firstEpoch := s.session.Epoch() == 0
	if firstEpoch {
		items, err := s.profile.LoadCache(ctx, conn)
		if err != nil {
			s.logger.WarnContext(ctx, "cache unavailable", "error", err.Error())
		}
		s.cache = items
		s.cached = len(items)
	}

	Prime(ctx, s.profile.Priming(conn), s.logger)

	if len(s.cache) > 0 {
		s.advance(syncdomain.PhaseEmittingCache)
		return s.emitCached(ctx), true
	}
	return s.startListening(ctx, s.cached > 0), true
}

func (s *Sequence) emitCached(ctx context.Context) syncdomain.Event {
	if len(s.cache) == 0 {
		return s.startListening(ctx, true)
	}
	item := s.cache[0]
	s.cache[0] = nil
	s.cache = s.cache[1:]
	s.span.Item()
	return syncdomain.ItemReceived{Target: s.profile.Target(), Item: item, Cached: true}
}

func (s *Sequence) startListening(ctx context.Context, warm bool) syncdomain.Event {
	if err := s.session.StartListening(s.now(), warm); err != nil {
		s.logger.ErrorContext(ctx, "phase transition rejected", "error", err.Error())
	}
	s.span.Phase(syncdomain.PhaseListening.String())
	logging.LogSyncStarted(ctx, s.logger, s.profile.Name(), s.cached, warm)
	return syncdomain.SyncStarted{Target: s.profile.Target(), Warm: warm}
}

func (s *Sequence) listen(ctx context.Context) (syncdomain.Event, bool) {
	for {
		now := s.now()
		if reason, ok := s.session.Expired(now); ok {
			return s.complete(ctx, now, reason), true
		}

		timer := time.NewTimer(s.session.NextDeadline().Sub(now))
		msg, open, received, err := s.await(ctx, timer.C)
		timer.Stop()

		if err != nil {
			s.abort(err)
			return nil, false
		}
		if !received {
			continue
		}
		if !open {
			return s.streamEnded(ctx), true
		}
		if evt, ok := s.handle(ctx, msg); ok {
			return evt, true
		}
	}
}

// await blocks until a message arrives, expired fires or ctx ends. When the
// timer and a message are ready together the message is returned.
func (s *Sequence) await(ctx context.Context, expired <-chan time.Time) (msg bus.Message, open, received bool, err error) {
	select {
	case <-ctx.Done():
		return bus.Message{}, false, false, ctx.Err()
	case msg, open = <-s.signals:
		return msg, open, true, nil
	case <-expired:
		select {
		case msg, open = <-s.signals:
			return msg, open, true, nil
		default:
			return bus.Message{}, false, false, nil
		}
	}
}

func (s *Sequence) handle(ctx context.Context, msg bus.Message) (syncdomain.Event, bool) {
	c := s.profile.Classify(msg)
	switch c.Kind {
	case Qualifying:
		s.session.ObserveItem(s.now())
		s.span.Item()
		return syncdomain.ItemReceived{Target: s.profile.Target(), Item: c.Item}, true
	case StoreComplete:
		s.session.ObserveStoreLoaded(s.now(), c.Count)
		s.logger.InfoContext(ctx, "store loaded", "count", c.Count)
		return syncdomain.StoreLoaded{Target: s.profile.Target(), Count: c.Count}, true
	case Activity:
		s.session.ObserveActivity(s.now())
		s.logger.DebugContext(ctx, "store activity", "signal", msg.Name())
		return nil, false
	default:
		logging.LogSignalDiscarded(ctx, s.logger, msg.Name(), msg.Path, c.Why)
		return nil, false
	}
}

func (s *Sequence) streamEnded(ctx context.Context) syncdomain.Event {
	s.closeConn()
	s.session = s.session.Reconnect()
	s.span.Reconnect(s.session.Epoch(), domerrors.ErrStreamClosed)
	logging.LogBusReconnect(ctx, s.logger, domerrors.ErrStreamClosed, 0)
	return syncdomain.Error{
		Target:      s.profile.Target(),
		Err:         domerrors.ErrStreamClosed,
		Recoverable: true,
	}
}

func (s *Sequence) complete(ctx context.Context, now time.Time, reason syncdomain.Reason) syncdomain.Event {
	evt, err := s.session.Complete(now, reason)
	if err != nil {
		s.logger.ErrorContext(ctx, "phase transition rejected", "error", err.Error())
	}
	s.done = true
	s.closeConn()
	s.span.End(string(reason), evt.Received, evt.Total, evt.Elapsed)
	logging.LogSyncCompleted(ctx, s.logger, s.profile.Name(), string(reason), evt.Received, evt.Total, evt.Elapsed)
	return evt
}

func (s *Sequence) advance(next syncdomain.Phase) {
	if err := s.session.Advance(next); err != nil {
		s.logger.Error("phase transition rejected", "session_id", s.id, "error", err.Error())
		return
	}
	s.span.Phase(next.String())
}

func (s *Sequence) abort(err error) {
	if s.done {
		return
	}
	s.done = true
	s.closeConn()
	if s.span != nil {
		s.span.Abort(err)
	}
}

func (s *Sequence) closeConn() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close connection", "session_id", s.id, "error", err.Error())
	}
	s.conn = nil
	s.signals = nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
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
