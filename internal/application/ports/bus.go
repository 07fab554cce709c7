// Package ports defines the application layer port interfaces following hexagonal architecture.
// Ports are abstractions that allow the application core to interact with the
// bus, the dedup store and the history store without knowing their adapters.
package ports

import (
	"context"

	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
)

// BusConnection is one session-scoped connection to the message bus.
type BusConnection interface {
	// AddMatch registers a signal filter. Registering the same rule twice
	// on one connection is a no-op.
	AddMatch(ctx context.Context, rule bus.MatchRule) error

	// Signals returns the connection's signal stream. Every call returns the
	// same channel. It is closed when the connection ends for any reason.
	Signals() <-chan bus.Message

	// Call invokes a method and returns its normalized reply body.
	Call(ctx context.Context, call bus.Call) ([]any, error)

	// Close tears down the connection and its filters.
	Close() error
}

// BusProvider acquires bus connections.
type BusProvider interface {
	// Connect opens a new connection. Errors are transport failures and
	// callers retry after a delay.
	Connect(ctx context.Context) (BusConnection, error)
}
