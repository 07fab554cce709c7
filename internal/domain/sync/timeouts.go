package sync

import (
	"errors"
	"fmt"
	"time"
)

// Timeouts are the magnitudes of the three completion deadlines.
type Timeouts struct {
	Hard         time.Duration // Absolute cap from session start, never reset
	ColdPeerWait time.Duration // Wait for the first response when nothing was cached
	WarmPeerWait time.Duration // Wait for the first response after replaying a cache
	Activity     time.Duration // Quiescence window after the peer started answering
}

// Default conversation-list timeouts.
const (
	DefaultListHard         = 20 * time.Second
	DefaultListColdPeerWait = 8 * time.Second
	DefaultListWarmPeerWait = 3 * time.Second
	DefaultListActivity     = 3 * time.Second
)

// Default conversation-thread timeouts. Threads have no cache, so the cold
// wait runs until the hard cap unless the store marker arrives first.
const (
	DefaultThreadHard         = 20 * time.Second
	DefaultThreadColdPeerWait = 20 * time.Second
	DefaultThreadWarmPeerWait = 3 * time.Second
	DefaultThreadActivity     = 8 * time.Second
)

// ListTimeouts returns the conversation-list defaults.
func ListTimeouts() Timeouts {
	return Timeouts{
		Hard:         DefaultListHard,
		ColdPeerWait: DefaultListColdPeerWait,
		WarmPeerWait: DefaultListWarmPeerWait,
		Activity:     DefaultListActivity,
	}
}

// ThreadTimeouts returns the conversation-thread defaults.
func ThreadTimeouts() Timeouts {
	return Timeouts{
		Hard:         DefaultThreadHard,
		ColdPeerWait: DefaultThreadColdPeerWait,
		WarmPeerWait: DefaultThreadWarmPeerWait,
		Activity:     DefaultThreadActivity,
	}
}

// Validate checks that every timeout is positive.
func (t Timeouts) Validate() error {
	var errs []error
	check := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	check("hard", t.Hard)
	check("cold_peer_wait", t.ColdPeerWait)
	check("warm_peer_wait", t.WarmPeerWait)
	check("activity", t.Activity)
	return errors.Join(errs...)
}
