package dbus

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/testutil"
)

type addr struct {
	Address string
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"scalar", int32(4), int32(4)},
		{"nil", nil, nil},
		{"variant", godbus.MakeVariant("x"), "x"},
		{"nested variant", godbus.MakeVariant(godbus.MakeVariant(int64(1))), int64(1)},
		{"object path", godbus.ObjectPath("/a/b"), "/a/b"},
		{"typed slice", []string{"a", "b"}, []any{"a", "b"}},
		{"bytes", []byte("hi"), []byte("hi")},
		{"struct", addr{"+1"}, []any{"+1"}},
		{"struct slice", [][]any{{"+1"}}, []any{[]any{"+1"}}},
		{"variant map", map[string]godbus.Variant{"k": godbus.MakeVariant(true)}, map[string]any{"k": true}},
		{"variant slice", []godbus.Variant{godbus.MakeVariant("a")}, []any{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizedBodyParses(t *testing.T) {
	// conversationUpdated carries a variant wrapping the message struct.
	raw := []any{
		int32(0), "hello", [][]any{{"+15550100"}}, int64(1000),
		int32(sms.TypeInbox), int32(1), int64(7), int32(3),
		int64(-1), []godbus.Variant{},
	}
	body := NormalizeBody([]any{godbus.MakeVariant(raw)})

	m, err := sms.ParseMessage(body[0])
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if m.Body != "hello" || m.ThreadID != 7 || m.PrimaryAddress() != "+15550100" {
		t.Errorf("unexpected message %+v", m)
	}
}

func TestToMessage(t *testing.T) {
	sig := &godbus.Signal{
		Sender: ":1.5",
		Path:   godbus.ObjectPath(bus.DevicePath("abc")),
		Name:   bus.InterfaceConversations + "." + bus.MemberConversationLoaded,
		Body:   []any{int64(3), uint64(9)},
	}
	msg := toMessage(sig)
	if !msg.IsSignal() || msg.Interface != bus.InterfaceConversations || msg.Member != bus.MemberConversationLoaded {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Path != bus.DevicePath("abc") || len(msg.Body) != 2 {
		t.Errorf("unexpected path or body %+v", msg)
	}
}

func TestMatchOptions(t *testing.T) {
	if n := len(matchOptions(bus.MatchRule{})); n != 0 {
		t.Errorf("expected no options for an empty rule, got %d", n)
	}
	if n := len(matchOptions(bus.MatchRule{Interface: "i", Member: "m", Sender: "s"})); n != 3 {
		t.Errorf("expected 3 options, got %d", n)
	}
}

func TestSharedConnection(t *testing.T) {
	ctx := context.Background()
	fb := testutil.NewFakeBus()
	shared := NewSharedConnection(fb)

	a, err := shared.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	b, err := shared.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if fb.Attempts() != 1 || shared.Refs() != 2 {
		t.Fatalf("expected one connection with two leases, attempts=%d refs=%d", fb.Attempts(), shared.Refs())
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if fb.Last().Closed() {
		t.Fatal("connection closed while a lease is outstanding")
	}
	if _, err := a.Call(ctx, bus.Call{}); !errors.Is(err, domerrors.ErrConnectionReleased) {
		t.Errorf("expected ErrConnectionReleased, got %v", err)
	}

	if _, err := b.Call(ctx, bus.Call{Interface: "i", Method: "m"}); err != nil {
		t.Errorf("Call() error = %v", err)
	}
	_ = b.Close()
	if !fb.Last().Closed() || shared.Refs() != 0 {
		t.Error("expected the connection to close with the last lease")
	}

	if _, err := shared.Acquire(ctx); err != nil {
		t.Fatalf("re-Acquire() error = %v", err)
	}
	if fb.Attempts() != 2 {
		t.Errorf("expected a fresh connection, attempts=%d", fb.Attempts())
	}
}

func TestSharedConnectionSerializesCalls(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	active, peak := 0, 0
	fb := testutil.NewFakeBus().HandleCalls(func(*testutil.FakeConn, bus.Call) ([]any, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	})
	shared := NewSharedConnection(fb)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		lease, err := shared.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer lease.Close()
			_, _ = lease.Call(ctx, bus.Call{Method: "m"})
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Errorf("expected serialized calls, peak concurrency %d", peak)
	}
	if len(fb.Last().Calls()) != 8 {
		t.Errorf("expected 8 calls, got %d", len(fb.Last().Calls()))
	}
}

func TestSharedConnectionConnectFailure(t *testing.T) {
	fb := testutil.NewFakeBus().FailNext(errors.New("no bus"))
	shared := NewSharedConnection(fb)
	if _, err := shared.Acquire(context.Background()); err == nil {
		t.Fatal("expected connect failure")
	}
	if shared.Refs() != 0 {
		t.Errorf("expected no refs, got %d", shared.Refs())
	}
}
