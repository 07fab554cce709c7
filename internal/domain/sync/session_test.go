package sync

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testTimeouts() Timeouts {
	return Timeouts{
		Hard:         20 * time.Second,
		ColdPeerWait: 8 * time.Second,
		WarmPeerWait: 3 * time.Second,
		Activity:     3 * time.Second,
	}
}

func TestPhaseAdvanceIsMonotonic(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)

	if err := s.Advance(PhaseEmittingCache); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var terr *TransitionError
	if err := s.Advance(PhaseEmittingCache); !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError on repeat, got %v", err)
	}
	if err := s.Advance(PhaseInit); err == nil {
		t.Fatal("expected error moving backwards")
	}
	if err := s.StartListening(t0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Complete(t0, ReasonPeer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Phase().Terminal() {
		t.Fatal("expected terminal phase")
	}
	if _, err := s.Complete(t0, ReasonPeer); err == nil {
		t.Fatal("expected Done to be visited at most once")
	}
}

func TestColdStartUsesLongPeerWait(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)
	if err := s.StartListening(t0, false); err != nil {
		t.Fatal(err)
	}
	if got := s.Deadlines().Peer; !got.Equal(t0.Add(8 * time.Second)) {
		t.Errorf("expected cold peer deadline at +8s, got %v", got.Sub(t0))
	}
	if _, ok := s.Expired(t0.Add(3 * time.Second)); ok {
		t.Error("cold session must not expire at the warm wait")
	}
	if r, ok := s.Expired(t0.Add(8 * time.Second)); !ok || r != ReasonPeer {
		t.Errorf("expected peer expiry at +8s, got %v %v", r, ok)
	}
}

func TestWarmStartUsesShortPeerWait(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)
	_ = s.Advance(PhaseEmittingCache)
	if err := s.StartListening(t0.Add(time.Second), true); err != nil {
		t.Fatal(err)
	}
	if r, ok := s.Expired(t0.Add(4 * time.Second)); !ok || r != ReasonPeer {
		t.Errorf("expected peer expiry at +4s, got %v %v", r, ok)
	}
}

func TestQualifyingItemOverridesActivityDeadline(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)
	_ = s.StartListening(t0, false)

	for _, at := range []time.Duration{time.Second, 2500 * time.Millisecond, 2 * time.Second} {
		now := t0.Add(at)
		s.ObserveItem(now)
		if got := s.Deadlines().Activity; !got.Equal(now.Add(3 * time.Second)) {
			t.Fatalf("expected activity deadline now+3s after item at %v, got %v", at, got.Sub(t0))
		}
	}
	if s.Received() != 3 {
		t.Errorf("expected 3 received, got %d", s.Received())
	}
}

func TestActivityReplacesPeerGovernance(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)
	_ = s.StartListening(t0, false)
	s.ObserveItem(t0.Add(7 * time.Second))

	// Peer deadline (+8s) has passed, activity (+10s) has not.
	if _, ok := s.Expired(t0.Add(9 * time.Second)); ok {
		t.Fatal("peer deadline must not govern once activity is armed")
	}
	if r, ok := s.Expired(t0.Add(10 * time.Second)); !ok || r != ReasonActivity {
		t.Errorf("expected activity expiry, got %v %v", r, ok)
	}
}

func TestHardDeadlineDominates(t *testing.T) {
	timeouts := Timeouts{
		Hard:         5 * time.Second,
		ColdPeerWait: 3000 * time.Second,
		WarmPeerWait: 3000 * time.Second,
		Activity:     3000 * time.Second,
	}
	s := NewSession(Target{DeviceID: "dev"}, timeouts, t0)
	_ = s.StartListening(t0, false)
	s.ObserveItem(t0.Add(time.Second))

	if got := s.NextDeadline(); !got.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("expected next deadline at hard cap, got %v", got.Sub(t0))
	}
	if r, ok := s.Expired(t0.Add(5 * time.Second)); !ok || r != ReasonHard {
		t.Errorf("expected hard expiry at 5s, got %v %v", r, ok)
	}
}

func TestStoreLoadedSwitchesToActivity(t *testing.T) {
	// Cache empty, marker with count 0 at t=1s, nothing else.
	s := NewSession(Target{DeviceID: "dev", ThreadID: 4}, testTimeouts(), t0)
	_ = s.StartListening(t0, false)
	s.ObserveStoreLoaded(t0.Add(time.Second), 0)

	d := s.Deadlines()
	if !d.ActivityArmed() || !d.Activity.Equal(t0.Add(4*time.Second)) {
		t.Fatalf("expected activity armed at 4s, got %v", d.Activity.Sub(t0))
	}
	if _, ok := s.Expired(t0.Add(3999 * time.Millisecond)); ok {
		t.Fatal("expired early")
	}
	r, ok := s.Expired(t0.Add(4 * time.Second))
	if !ok || r != ReasonActivity {
		t.Fatalf("expected activity expiry, got %v %v", r, ok)
	}
	done, err := s.Complete(t0.Add(4*time.Second), r)
	if err != nil {
		t.Fatal(err)
	}
	if done.Total != 0 || done.Received != 0 {
		t.Errorf("expected empty totals, got %+v", done)
	}
	if done.Elapsed != 4*time.Second {
		t.Errorf("expected 4s elapsed, got %v", done.Elapsed)
	}
}

func TestObserveActivityLeavesCounters(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)
	_ = s.StartListening(t0, false)
	s.ObserveActivity(t0.Add(time.Second))

	if !s.Deadlines().Activity.Equal(t0.Add(4 * time.Second)) {
		t.Fatalf("expected activity armed at 4s, got %v", s.Deadlines().Activity.Sub(t0))
	}
	if s.Received() != 0 || s.StoreTotal() != 0 {
		t.Errorf("expected no counters, got received=%d total=%d", s.Received(), s.StoreTotal())
	}
}

func TestExpiredOnlyWhileListening(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)
	_ = s.Advance(PhaseEmittingCache)
	if _, ok := s.Expired(t0.Add(time.Hour)); ok {
		t.Error("cache replay must not be cut short by deadlines")
	}
}

func TestReconnectKeepsHardDeadlineAndCounters(t *testing.T) {
	s := NewSession(Target{DeviceID: "dev"}, testTimeouts(), t0)
	_ = s.StartListening(t0, false)
	s.ObserveItem(t0.Add(time.Second))
	s.ObserveStoreLoaded(t0.Add(2*time.Second), 12)

	next := s.Reconnect()
	if next.Phase() != PhaseInit {
		t.Fatalf("expected init, got %s", next.Phase())
	}
	if !next.Deadlines().Hard.Equal(s.Deadlines().Hard) {
		t.Error("hard deadline must survive reconnect")
	}
	if next.Deadlines().ActivityArmed() {
		t.Error("activity deadline must reset with the connection")
	}
	if next.Received() != 1 || next.StoreTotal() != 12 || next.Epoch() != 1 {
		t.Errorf("unexpected carried state received=%d total=%d epoch=%d", next.Received(), next.StoreTotal(), next.Epoch())
	}
}

func TestTimeoutsValidate(t *testing.T) {
	if err := ListTimeouts().Validate(); err != nil {
		t.Errorf("expected list defaults valid, got %v", err)
	}
	if err := ThreadTimeouts().Validate(); err != nil {
		t.Errorf("expected thread defaults valid, got %v", err)
	}
	if err := (Timeouts{Hard: time.Second}).Validate(); err == nil {
		t.Error("expected error for zero timeouts")
	}
}

func TestTargetString(t *testing.T) {
	if got := (Target{DeviceID: "a"}).String(); got != "a" {
		t.Errorf("got %q", got)
	}
	if got := (Target{DeviceID: "a", ThreadID: 7}).String(); got != "a/7" {
		t.Errorf("got %q", got)
	}
}
