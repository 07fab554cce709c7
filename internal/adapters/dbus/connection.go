package dbus

import (
	"context"
	"fmt"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/tracing"
)

const signalBuffer = 64

// SessionBusProvider opens private session bus connections.
type SessionBusProvider struct {
	address string
	logger  *logging.Logger
	tracer  *tracing.Tracer
}

var _ ports.BusProvider = (*SessionBusProvider)(nil)

// NewSessionBusProvider creates a provider. An empty address uses the
// session bus from the environment.
func NewSessionBusProvider(address string, logger *logging.Logger, tracer *tracing.Tracer) *SessionBusProvider {
	if logger == nil {
		logger = logging.Default()
	}
	if tracer == nil {
		tracer = tracing.Default()
	}
	return &SessionBusProvider{address: address, logger: logger, tracer: tracer}
}

// Connect opens a new connection. Each connection owns its signal stream.
func (p *SessionBusProvider) Connect(ctx context.Context) (ports.BusConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		conn *godbus.Conn
		err  error
	)
	if p.address != "" {
		conn, err = godbus.Connect(p.address)
	} else {
		conn, err = godbus.ConnectSessionBus()
	}
	if err != nil {
		return nil, domerrors.Transport("connect to session bus", err)
	}
	return newConnection(conn, p.logger, p.tracer), nil
}

// Connection is one session bus connection.
type Connection struct {
	conn   *godbus.Conn
	logger *logging.Logger
	tracer *tracing.Tracer

	in   chan *godbus.Signal
	out  chan bus.Message
	done chan struct{}

	mu     sync.Mutex
	rules  map[string]bool
	closed bool
}

var _ ports.BusConnection = (*Connection)(nil)

func newConnection(conn *godbus.Conn, logger *logging.Logger, tracer *tracing.Tracer) *Connection {
	c := &Connection{
		conn:   conn,
		logger: logger,
		tracer: tracer,
		in:     make(chan *godbus.Signal, signalBuffer),
		out:    make(chan bus.Message, signalBuffer),
		done:   make(chan struct{}),
		rules:  make(map[string]bool),
	}
	conn.Signal(c.in)
	go c.pump()
	return c
}

// pump converts raw signals until the library closes the channel, which
// happens when the connection drops or is closed.
func (c *Connection) pump() {
	defer close(c.out)
	for {
		select {
		case <-c.done:
			return
		case sig, ok := <-c.in:
			if !ok {
				return
			}
			msg := toMessage(sig)
			select {
			case c.out <- msg:
			case <-c.done:
				return
			}
		}
	}
}

func toMessage(sig *godbus.Signal) bus.Message {
	iface, member := bus.SplitName(sig.Name)
	return bus.Message{
		Type:      bus.TypeSignal,
		Sender:    sig.Sender,
		Path:      string(sig.Path),
		Interface: iface,
		Member:    member,
		Body:      NormalizeBody(sig.Body),
	}
}

func matchOptions(rule bus.MatchRule) []godbus.MatchOption {
	var opts []godbus.MatchOption
	if rule.Interface != "" {
		opts = append(opts, godbus.WithMatchInterface(rule.Interface))
	}
	if rule.Member != "" {
		opts = append(opts, godbus.WithMatchMember(rule.Member))
	}
	if rule.Sender != "" {
		opts = append(opts, godbus.WithMatchSender(rule.Sender))
	}
	return opts
}

// AddMatch registers a signal match rule with the bus daemon. Registering
// the same rule twice is a no-op.
func (c *Connection) AddMatch(ctx context.Context, rule bus.MatchRule) error {
	key := rule.String()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domerrors.ErrNotConnected
	}
	if c.rules[key] {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.conn.AddMatchSignalContext(ctx, matchOptions(rule)...); err != nil {
		return domerrors.WithContext(domerrors.Transport("add match rule", err), "rule", key)
	}

	c.mu.Lock()
	c.rules[key] = true
	c.mu.Unlock()
	return nil
}

// Signals returns the signal stream. It is closed when the connection ends.
func (c *Connection) Signals() <-chan bus.Message {
	return c.out
}

// Call invokes a method and returns its normalized reply body.
func (c *Connection) Call(ctx context.Context, call bus.Call) ([]any, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, domerrors.ErrNotConnected
	}

	method := call.Interface + "." + call.Method
	ctx, span := c.tracer.StartCallSpan(ctx, call.Path, method)

	obj := c.conn.Object(call.Destination, godbus.ObjectPath(call.Path))
	res := obj.CallWithContext(ctx, method, 0, call.Args...)
	tracing.EndCallSpan(span, res.Err)
	if res.Err != nil {
		c.logger.DebugContext(ctx, "bus call failed", "method", method, "path", call.Path, "error", res.Err.Error())
		return nil, fmt.Errorf("%s: %w", method, res.Err)
	}
	return NormalizeBody(res.Body), nil
}

// Close closes the connection and ends the signal stream.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.conn.RemoveSignal(c.in)
	return c.conn.Close()
}
