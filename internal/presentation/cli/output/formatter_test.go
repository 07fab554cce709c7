package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func plain(buf *bytes.Buffer, format Format) *Formatter {
	return NewFormatter(WithWriter(buf), WithFormat(format), WithColor(false))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{" JSON ", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatText, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(*Formatter) error
		want  string
	}{
		{"success", func(f *Formatter) error { return f.Success("Message sent via %s", "a1b2") }, "✓ Message sent via a1b2\n"},
		{"error", func(f *Formatter) error { return f.Error("Send failed: %s", "timeout") }, "✗ Send failed: timeout\n"},
		{"info", func(f *Formatter) error { return f.Info("No conversations") }, "ℹ No conversations\n"},
		{"item", func(f *Formatter) error { return f.Item("Runs", "3") }, "  Runs: 3\n"},
		{"header", func(f *Formatter) error { return f.Header("Summary") }, "Summary\n───────\n"},
		{"sub header", func(f *Formatter) error { return f.SubHeader("conversation_list") }, "conversation_list\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.write(plain(&buf, FormatText)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatter_Colors(t *testing.T) {
	var buf bytes.Buffer
	colored := NewFormatter(WithWriter(&buf), WithColor(true))
	if got := colored.Bold("x"); got != string(ColorBold)+"x"+string(ColorReset) {
		t.Errorf("expected bold escape, got %q", got)
	}
	if got := colored.Dim(""); got != "" {
		t.Errorf("expected empty text to stay empty, got %q", got)
	}
	_ = colored.Success("ok")
	if !strings.HasPrefix(buf.String(), string(ColorGreen)) {
		t.Errorf("expected green success line, got %q", buf.String())
	}

	off := plain(&bytes.Buffer{}, FormatText)
	if got := off.Dim("x"); got != "x" {
		t.Errorf("expected no escapes with color off, got %q", got)
	}
}

func TestFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	f := plain(&buf, FormatTable)
	err := f.Table(TableData{
		Columns: []TableColumn{
			{Header: "THREAD", Width: 4, Align: AlignRight},
			{Header: "WITH", Align: AlignLeft},
			{Header: "LAST MESSAGE", Align: AlignLeft},
		},
		Rows: [][]string{
			{"7", "Zoë", "héllo"},
			{"1234567", "+15550100", "hi"},
			{"9"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		" THREAD  WITH       LAST MESSAGE",
		"-------  ---------  ------------",
		"      7  Zoë        héllo",
		"1234567  +15550100  hi",
		"      9",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestFormatter_Table_NoColumns(t *testing.T) {
	var buf bytes.Buffer
	if err := plain(&buf, FormatTable).Table(TableData{Rows: [][]string{{"x"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := plain(&buf, FormatJSON)
	if f.Format() != FormatJSON {
		t.Fatalf("expected json format, got %s", f.Format())
	}
	if err := f.JSON(map[string]any{"sent": true, "thread_id": 42}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"sent\": true") {
		t.Errorf("expected indented output, got %q", buf.String())
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["thread_id"] != float64(42) {
		t.Errorf("expected thread_id 42, got %v", got["thread_id"])
	}
}

func TestFormatter_ConcurrentLines(t *testing.T) {
	var buf bytes.Buffer
	f := plain(&buf, FormatText)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.Println("line %d", i)
		}()
	}
	wg.Wait()

	if n := strings.Count(buf.String(), "\n"); n != 20 {
		t.Errorf("expected 20 whole lines, got %d", n)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	var out syncBuffer
	s := NewSpinner("Sending...", WithSpinnerWriter(&out), WithSpinnerColor(false))
	s.interval = 5 * time.Millisecond

	s.Start()
	s.Start()
	deadline := time.Now().Add(time.Second)
	for !strings.Contains(out.String(), "Sending...") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	got := out.String()
	if !strings.Contains(got, "⠋ Sending...") {
		t.Errorf("expected a drawn frame, got %q", got)
	}
	if !strings.HasSuffix(got, "\r") {
		t.Errorf("expected the line to be cleared, got %q", got)
	}
	if strings.Contains(got, string(ColorCyan)) {
		t.Error("expected no color escapes")
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var out syncBuffer
	NewSpinner("x", WithSpinnerWriter(&out)).Stop()
	if out.String() != "" {
		t.Errorf("expected no output, got %q", out.String())
	}
}
