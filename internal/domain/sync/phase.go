// Package sync defines the state, deadlines and events of an incremental
// signal-driven sync session.
package sync

import (
	"fmt"
	"strconv"
)

// Phase is the lifecycle stage of a sync session. Phases only move forward.
type Phase int

const (
	PhaseInit          Phase = iota // Connecting, registering filters, priming
	PhaseEmittingCache              // Replaying cached items one per pull
	PhaseListening                  // Racing live signals against deadlines
	PhaseDone                       // Terminal
)

// String returns a lowercase name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseEmittingCache:
		return "emitting_cache"
	case PhaseListening:
		return "listening"
	case PhaseDone:
		return "done"
	default:
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// CanAdvance reports whether moving from p to next keeps the sequence
// strictly increasing. EmittingCache may be skipped.
func (p Phase) CanAdvance(next Phase) bool {
	return next > p && next <= PhaseDone
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone
}

// TransitionError reports an attempted backward or repeated transition.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition %s -> %s", e.From, e.To)
}
