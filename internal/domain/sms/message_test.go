package sms

import (
	"math"
	"testing"

	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
)

func rawMessage(thread int64, date int64, body string) []any {
	return []any{
		int32(0), body, []any{[]any{"+15550100"}}, date,
		int32(TypeInbox), int32(0), thread, int32(7),
		int64(-1), []any{},
	}
}

func TestParseMessage(t *testing.T) {
	raw := rawMessage(42, 1700000000000, "hello")
	raw[9] = []any{[]any{int64(3), "image/png", "", "att-1"}}

	m, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ThreadID != 42 || m.Body != "hello" || m.Date != 1700000000000 {
		t.Errorf("unexpected message %+v", m)
	}
	if m.Type != TypeInbox || m.Read {
		t.Errorf("expected unread inbox message, got type=%s read=%v", m.Type, m.Read)
	}
	if m.PrimaryAddress() != "+15550100" {
		t.Errorf("expected address, got %q", m.PrimaryAddress())
	}
	if len(m.Attachments) != 1 || m.Attachments[0].MimeType != "image/png" {
		t.Errorf("unexpected attachments %+v", m.Attachments)
	}
}

func TestParseMessageLegacyLayout(t *testing.T) {
	raw := rawMessage(5, 10, "old")[:8]
	m, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.SubID != 0 || m.Attachments != nil {
		t.Errorf("expected zero optional fields, got %+v", m)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"not a struct", "hello"},
		{"too short", []any{int32(0), "x"}},
		{"body wrong type", func() any { r := rawMessage(1, 1, ""); r[1] = int32(5); return r }()},
		{"thread wrong type", func() any { r := rawMessage(1, 1, ""); r[6] = "42"; return r }()},
		{"bad attachment", func() any { r := rawMessage(1, 1, ""); r[9] = []any{"x"}; return r }()},
		{"type overflows int32", func() any { r := rawMessage(1, 1, ""); r[4] = int64(math.MaxInt32) + 1; return r }()},
		{"uid below int32", func() any { r := rawMessage(1, 1, ""); r[7] = int64(math.MinInt32) - 1; return r }()},
		{"thread above int64", func() any { r := rawMessage(1, 1, ""); r[6] = uint64(math.MaxUint64); return r }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage(tt.v)
			if !domerrors.Is(err, domerrors.ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestParseMessagesSkipsMalformed(t *testing.T) {
	msgs, skipped := ParseMessages([]any{rawMessage(1, 1, "a"), "junk", rawMessage(2, 2, "b")})
	if len(msgs) != 2 || skipped != 1 {
		t.Fatalf("expected 2 parsed and 1 skipped, got %d and %d", len(msgs), skipped)
	}
}

func TestParseLoaded(t *testing.T) {
	thread, count, err := ParseLoaded([]any{int64(42), uint64(17)})
	if err != nil || thread != 42 || count != 17 {
		t.Fatalf("unexpected result %d %d %v", thread, count, err)
	}
	if _, _, err := ParseLoaded([]any{int64(42)}); err == nil {
		t.Error("expected error for short body")
	}
	if _, _, err := ParseLoaded([]any{int64(42), int64(-1)}); err == nil {
		t.Error("expected error for negative count")
	}
	if _, count, err := ParseLoaded([]any{int64(42), uint64(math.MaxUint64)}); err != nil || count != math.MaxUint64 {
		t.Errorf("expected full uint64 count, got %d %v", count, err)
	}
}

func TestSummarizeConversations(t *testing.T) {
	msgs := []Message{
		{ThreadID: 1, Date: 100, Body: "old in 1"},
		{ThreadID: 2, Date: 300, Body: "newest in 2", Read: true},
		{ThreadID: 1, Date: 200, Body: "new in 1", Attachments: []Attachment{{PartID: 1}}},
	}

	got := SummarizeConversations(msgs)
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].ThreadID != 2 || got[1].ThreadID != 1 {
		t.Errorf("expected newest first, got %+v", got)
	}
	if got[1].LastMessage != "new in 1" || !got[1].HasAttachments || !got[1].Unread {
		t.Errorf("expected newest message of thread 1 kept, got %+v", got[1])
	}
	if got[0].Unread {
		t.Error("expected read thread to be marked read")
	}
}

func TestItemIDs(t *testing.T) {
	m := Message{ThreadID: 9, UID: 3}
	if m.ItemID() != "9:3" {
		t.Errorf("unexpected message id %q", m.ItemID())
	}
	if Summarize(m).ItemID() != "9" {
		t.Errorf("unexpected summary id %q", Summarize(m).ItemID())
	}
}
