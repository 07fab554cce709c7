package testutil

import (
	"context"
	"sync"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
)

// CallHandler answers a call on a FakeConn. It may emit signals on conn.
type CallHandler func(conn *FakeConn, call bus.Call) ([]any, error)

// FakeConn is an in-memory ports.BusConnection.
type FakeConn struct {
	mu       sync.Mutex
	rules    []bus.MatchRule
	calls    []bus.Call
	signals  chan bus.Message
	ended    bool
	closed   bool
	matchErr error
	handler  CallHandler
}

var _ ports.BusConnection = (*FakeConn)(nil)

// NewFakeConn creates a connection with a buffered signal stream.
func NewFakeConn() *FakeConn {
	return &FakeConn{signals: make(chan bus.Message, 256)}
}

// FailMatches makes every AddMatch return err.
func (c *FakeConn) FailMatches(err error) *FakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matchErr = err
	return c
}

// HandleCalls installs a call handler.
func (c *FakeConn) HandleCalls(h CallHandler) *FakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
	return c
}

func (c *FakeConn) AddMatch(ctx context.Context, rule bus.MatchRule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.matchErr != nil {
		return c.matchErr
	}
	for _, r := range c.rules {
		if r == rule {
			return nil
		}
	}
	c.rules = append(c.rules, rule)
	return nil
}

func (c *FakeConn) Signals() <-chan bus.Message {
	return c.signals
}

func (c *FakeConn) Call(ctx context.Context, call bus.Call) ([]any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domerrors.ErrNotConnected
	}
	c.calls = append(c.calls, call)
	h := c.handler
	c.mu.Unlock()

	if h == nil {
		return nil, nil
	}
	return h(c, call)
}

// Close closes the connection and its stream.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.endLocked()
	return nil
}

// Emit pushes a message onto the stream. Dropped after End or Close.
func (c *FakeConn) Emit(msgs ...bus.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	for _, m := range msgs {
		c.signals <- m
	}
}

// End closes the stream as if the remote side went away.
func (c *FakeConn) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked()
}

func (c *FakeConn) endLocked() {
	if !c.ended {
		c.ended = true
		close(c.signals)
	}
}

// Rules returns the registered match rules.
func (c *FakeConn) Rules() []bus.MatchRule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bus.MatchRule(nil), c.rules...)
}

// Calls returns the calls issued so far, in order.
func (c *FakeConn) Calls() []bus.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bus.Call(nil), c.calls...)
}

// Methods returns "interface.method" for every issued call, in order.
func (c *FakeConn) Methods() []string {
	calls := c.Calls()
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.Interface + "." + call.Method
	}
	return out
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeBus is an in-memory ports.BusProvider. Connect hands out queued
// failures first, then queued connections, then fresh ones.
type FakeBus struct {
	mu       sync.Mutex
	failures []error
	queued   []*FakeConn
	opened   []*FakeConn
	attempts int
	template CallHandler
}

var _ ports.BusProvider = (*FakeBus)(nil)

// NewFakeBus creates a provider that will hand out conns in order.
func NewFakeBus(conns ...*FakeConn) *FakeBus {
	return &FakeBus{queued: conns}
}

// FailNext queues connect failures.
func (b *FakeBus) FailNext(errs ...error) *FakeBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, errs...)
	return b
}

// HandleCalls sets the handler installed on connections created on demand.
func (b *FakeBus) HandleCalls(h CallHandler) *FakeBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.template = h
	return b
}

func (b *FakeBus) Connect(ctx context.Context) (ports.BusConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if len(b.failures) > 0 {
		err := b.failures[0]
		b.failures = b.failures[1:]
		return nil, err
	}
	var conn *FakeConn
	if len(b.queued) > 0 {
		conn = b.queued[0]
		b.queued = b.queued[1:]
	} else {
		conn = NewFakeConn()
		if b.template != nil {
			conn.handler = b.template
		}
	}
	b.opened = append(b.opened, conn)
	return conn, nil
}

// Attempts returns the number of Connect calls.
func (b *FakeBus) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Opened returns the connections handed out so far.
func (b *FakeBus) Opened() []*FakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakeConn(nil), b.opened...)
}

// Last returns the most recently opened connection, or nil.
func (b *FakeBus) Last() *FakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opened) == 0 {
		return nil
	}
	return b.opened[len(b.opened)-1]
}
