package sync

import "time"

// Deadlines is a snapshot of a session's completion deadlines.
// Zero values are unset.
type Deadlines struct {
	Hard     time.Time
	Peer     time.Time
	Activity time.Time
}

// ActivityArmed reports whether quiescence governs completion instead of
// the peer wait.
func (d Deadlines) ActivityArmed() bool {
	return !d.Activity.IsZero()
}

// Session is the state of one sync run. It holds no I/O; every mutation
// takes the current time explicitly.
type Session struct {
	target   Target
	timeouts Timeouts
	start    time.Time

	phase     Phase
	deadlines Deadlines
	received  int
	total     uint64
	epoch     int
}

// NewSession creates a session in PhaseInit whose hard deadline is
// start + timeouts.Hard.
func NewSession(target Target, timeouts Timeouts, start time.Time) *Session {
	return &Session{
		target:    target,
		timeouts:  timeouts,
		start:     start,
		phase:     PhaseInit,
		deadlines: Deadlines{Hard: start.Add(timeouts.Hard)},
	}
}

// Reconnect returns a fresh PhaseInit session for a new connection epoch.
// Start time, hard deadline and counters carry over.
func (s *Session) Reconnect() *Session {
	next := NewSession(s.target, s.timeouts, s.start)
	next.received = s.received
	next.total = s.total
	next.epoch = s.epoch + 1
	return next
}

func (s *Session) Target() Target       { return s.target }
func (s *Session) Timeouts() Timeouts   { return s.timeouts }
func (s *Session) Phase() Phase         { return s.phase }
func (s *Session) StartTime() time.Time { return s.start }
func (s *Session) Deadlines() Deadlines { return s.deadlines }
func (s *Session) Received() int        { return s.received }
func (s *Session) StoreTotal() uint64   { return s.total }
func (s *Session) Epoch() int           { return s.epoch }

// Advance moves the session to next.
func (s *Session) Advance(next Phase) error {
	if !s.phase.CanAdvance(next) {
		return &TransitionError{From: s.phase, To: next}
	}
	s.phase = next
	return nil
}

// StartListening enters PhaseListening and arms the peer deadline. A warm
// start uses the short wait because a cache was already shown.
func (s *Session) StartListening(now time.Time, warm bool) error {
	if err := s.Advance(PhaseListening); err != nil {
		return err
	}
	wait := s.timeouts.ColdPeerWait
	if warm {
		wait = s.timeouts.WarmPeerWait
	}
	s.deadlines.Peer = now.Add(wait)
	return nil
}

// ObserveItem records a qualifying item and re-arms the activity deadline.
func (s *Session) ObserveItem(now time.Time) {
	s.received++
	s.deadlines.Activity = now.Add(s.timeouts.Activity)
}

// ObserveActivity re-arms the activity deadline without counting an item
// or touching the store total.
func (s *Session) ObserveActivity(now time.Time) {
	s.deadlines.Activity = now.Add(s.timeouts.Activity)
}

// ObserveStoreLoaded records the store's final count and hands completion
// over to the activity deadline.
func (s *Session) ObserveStoreLoaded(now time.Time, count uint64) {
	s.total = count
	s.deadlines.Activity = now.Add(s.timeouts.Activity)
}

// Expired evaluates the deadlines in priority order: hard, then activity
// when armed, otherwise peer. Only a listening session can expire.
func (s *Session) Expired(now time.Time) (Reason, bool) {
	if s.phase != PhaseListening {
		return "", false
	}
	d := s.deadlines
	if !now.Before(d.Hard) {
		return ReasonHard, true
	}
	if d.ActivityArmed() {
		if !now.Before(d.Activity) {
			return ReasonActivity, true
		}
		return "", false
	}
	if !d.Peer.IsZero() && !now.Before(d.Peer) {
		return ReasonPeer, true
	}
	return "", false
}

// NextDeadline returns the earliest deadline currently governing the session.
func (s *Session) NextDeadline() time.Time {
	d := s.deadlines
	next := d.Hard
	governing := d.Peer
	if d.ActivityArmed() {
		governing = d.Activity
	}
	if !governing.IsZero() && governing.Before(next) {
		next = governing
	}
	return next
}

// Complete moves the session to PhaseDone and builds its completion event.
func (s *Session) Complete(now time.Time, reason Reason) (SyncComplete, error) {
	if err := s.Advance(PhaseDone); err != nil {
		return SyncComplete{}, err
	}
	return SyncComplete{
		Target:   s.target,
		Reason:   reason,
		Received: s.received,
		Total:    s.total,
		Elapsed:  now.Sub(s.start),
	}, nil
}
