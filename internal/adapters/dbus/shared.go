package dbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
)

// SharedConnection hands out leases on one lazily opened connection for
// outbound calls. Calls are serialized and the connection is closed when
// the last lease is released.
type SharedConnection struct {
	provider ports.BusProvider

	mu   sync.Mutex
	conn ports.BusConnection
	refs int

	callMu sync.Mutex
}

// NewSharedConnection creates a shared connection over provider.
func NewSharedConnection(provider ports.BusProvider) *SharedConnection {
	return &SharedConnection{provider: provider}
}

// Acquire returns a lease, connecting if no lease is outstanding.
func (s *SharedConnection) Acquire(ctx context.Context) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := s.provider.Connect(ctx)
		if err != nil {
			return nil, err
		}
		s.conn = conn
	}
	s.refs++
	return &Lease{shared: s, conn: s.conn}, nil
}

// Refs returns the number of outstanding leases.
func (s *SharedConnection) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *SharedConnection) release(conn ports.BusConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.conn = nil
	s.refs = 0
	return conn.Close()
}

// Lease is one holder's view of a SharedConnection. It implements
// ports.BusConnection; Close releases the lease.
type Lease struct {
	shared   *SharedConnection
	conn     ports.BusConnection
	released atomic.Bool
}

var _ ports.BusConnection = (*Lease)(nil)

// AddMatch registers a rule on the shared connection.
func (l *Lease) AddMatch(ctx context.Context, rule bus.MatchRule) error {
	if l.released.Load() {
		return domerrors.ErrConnectionReleased
	}
	return l.conn.AddMatch(ctx, rule)
}

// Signals returns the shared stream. Leases are meant for calls; several
// readers of one stream each see a subset of the signals.
func (l *Lease) Signals() <-chan bus.Message {
	return l.conn.Signals()
}

// Call serializes the call with every other lease.
func (l *Lease) Call(ctx context.Context, call bus.Call) ([]any, error) {
	if l.released.Load() {
		return nil, domerrors.ErrConnectionReleased
	}
	l.shared.callMu.Lock()
	defer l.shared.callMu.Unlock()
	return l.conn.Call(ctx, call)
}

// Close releases the lease. Later calls fail with ErrConnectionReleased.
func (l *Lease) Close() error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	return l.shared.release(l.conn)
}
