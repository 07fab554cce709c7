package peer

import (
	"context"
	"errors"
	"testing"

	"github.com/jbctechsolutions/connectsync/internal/domain/bus"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	"github.com/jbctechsolutions/connectsync/internal/domain/sms"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/testutil"
)

func TestActiveConversations(t *testing.T) {
	conn := testutil.NewFakeConn().HandleCalls(func(_ *testutil.FakeConn, call bus.Call) ([]any, error) {
		if call.Method != "activeConversations" {
			t.Errorf("unexpected method %s", call.Method)
		}
		return []any{[]any{
			testutil.RawMessage(1, 1, 100, "a", sms.TypeInbox),
			"garbage",
			testutil.RawMessage(2, 2, 200, "b", sms.TypeSent),
		}}, nil
	})

	msgs, skipped, err := NewConversations(conn, "dev").ActiveConversations(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(msgs), 2)
	testutil.AssertEqual(t, skipped, 1)

	call := conn.Calls()[0]
	testutil.AssertEqual(t, call.Path, bus.DevicePath("dev"))
	testutil.AssertEqual(t, call.Interface, bus.InterfaceConversations)
}

func TestRequestArgumentTypes(t *testing.T) {
	conn := testutil.NewFakeConn()
	ctx := context.Background()

	testutil.AssertNoError(t, NewConversations(conn, "dev").RequestConversation(ctx, 42, 0, 50))
	testutil.AssertNoError(t, NewSMS(conn, "dev").RequestConversation(ctx, 42, 0, 50))

	calls := conn.Calls()
	if _, ok := calls[0].Args[1].(int32); !ok {
		t.Errorf("store requestConversation range must be int32, got %T", calls[0].Args[1])
	}
	if _, ok := calls[1].Args[1].(int64); !ok {
		t.Errorf("sms requestConversation range must be int64, got %T", calls[1].Args[1])
	}
	testutil.AssertEqual(t, calls[1].Path, bus.SmsPath("dev"))
}

func TestDeviceName(t *testing.T) {
	conn := testutil.NewFakeConn().HandleCalls(func(_ *testutil.FakeConn, call bus.Call) ([]any, error) {
		if call.Interface != bus.InterfaceProperties || call.Args[1] != "name" {
			return nil, errors.New("unexpected call")
		}
		return []any{"Pixel"}, nil
	})

	name, err := NewDevice(conn, "dev").Name(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, name, "Pixel")
}

func TestDaemonDevices(t *testing.T) {
	conn := testutil.NewFakeConn().HandleCalls(func(_ *testutil.FakeConn, call bus.Call) ([]any, error) {
		return []any{[]any{"a", "b"}}, nil
	})
	ids, err := NewDaemon(conn).Devices(context.Background(), true, true)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(ids), 2)
}

func TestSender(t *testing.T) {
	ctx := context.Background()

	t.Run("reply", func(t *testing.T) {
		conn := testutil.NewFakeConn()
		s := NewSender(conn, "dev", logging.Discard())
		testutil.AssertNoError(t, s.Reply(ctx, 7, "hi"))
		call := conn.Calls()[0]
		testutil.AssertEqual(t, call.Method, "replyToConversation")
		testutil.AssertEqual(t, call.Args[0].(int64), int64(7))
	})

	t.Run("send new wraps recipient", func(t *testing.T) {
		conn := testutil.NewFakeConn()
		s := NewSender(conn, "dev", logging.Discard())
		testutil.AssertNoError(t, s.SendNew(ctx, " +15550100 ", "hi"))
		addrs := conn.Calls()[0].Args[0].([]any)
		if addrs[0].(Address).Address != "+15550100" {
			t.Errorf("unexpected address %+v", addrs[0])
		}
	})

	t.Run("validation", func(t *testing.T) {
		s := NewSender(testutil.NewFakeConn(), "dev", logging.Discard())
		if err := s.Reply(ctx, 7, "  "); domerrors.CodeOf(err) != domerrors.CodeValidation {
			t.Errorf("expected validation error, got %v", err)
		}
		if err := s.Reply(ctx, 0, "x"); !errors.Is(err, domerrors.ErrInvalidTarget) {
			t.Errorf("expected invalid target, got %v", err)
		}
		if err := s.SendNew(ctx, "", "x"); !errors.Is(err, domerrors.ErrInvalidTarget) {
			t.Errorf("expected invalid target, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		conn := testutil.NewFakeConn().HandleCalls(func(*testutil.FakeConn, bus.Call) ([]any, error) {
			return nil, errors.New("no reply")
		})
		err := NewSender(conn, "dev", logging.Discard()).Reply(ctx, 7, "hi")
		if domerrors.CodeOf(err) != domerrors.CodeTransport {
			t.Errorf("expected transport error, got %v", err)
		}
	})
}
