package ports

import (
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
)

// EventSink receives events produced by sync sequences and listeners.
// Publish must not block for long; slow sinks drop or buffer.
type EventSink interface {
	Publish(event syncdomain.Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event syncdomain.Event)

// Publish calls f(event).
func (f EventSinkFunc) Publish(event syncdomain.Event) {
	f(event)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []EventSink

// Publish forwards event to every sink.
func (m MultiSink) Publish(event syncdomain.Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(event)
		}
	}
}
