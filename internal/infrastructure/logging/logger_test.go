package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, buf *bytes.Buffer)
	}{
		{
			name:   "text format",
			config: Config{Level: LevelInfo, Format: FormatText},
			check: func(t *testing.T, buf *bytes.Buffer) {
				if !strings.Contains(buf.String(), "level=INFO") {
					t.Error("expected text format with level=INFO")
				}
			},
		},
		{
			name:   "json format",
			config: Config{Level: LevelInfo, Format: FormatJSON},
			check: func(t *testing.T, buf *bytes.Buffer) {
				var m map[string]interface{}
				if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
					t.Errorf("expected valid JSON output: %v", err)
				}
				if m["level"] != "INFO" {
					t.Errorf("expected level INFO, got %v", m["level"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.config.Output = buf

			New(tt.config).Info("test message")

			tt.check(t, buf)
		})
	}
}

func TestSetLevelAppliesToDerivedLoggers(t *testing.T) {
	buf := &bytes.Buffer{}
	root := New(Config{Level: LevelInfo, Output: buf})
	child := root.With("component", "listener")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug suppressed, got %q", buf.String())
	}

	root.SetLevel(LevelDebug)
	child.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output after SetLevel, got %q", buf.String())
	}
	if !root.Enabled(LevelDebug) {
		t.Error("expected debug enabled")
	}
}

func TestContextEnrichment(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{Level: LevelDebug, Format: FormatJSON, Output: buf})

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithDeviceID(ctx, "dev-1")
	ctx = WithThreadID(ctx, 42)

	logger.InfoContext(ctx, "hello", "extra", "x")

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	for key, want := range map[string]interface{}{
		"correlation_id": "corr-1",
		"session_id":     "sess-1",
		"device_id":      "dev-1",
		"thread_id":      float64(42),
		"extra":          "x",
	} {
		if m[key] != want {
			t.Errorf("expected %s=%v, got %v", key, want, m[key])
		}
	}
}

func TestContextGetters(t *testing.T) {
	ctx := context.Background()
	if CorrelationID(ctx) != "" || SessionID(ctx) != "" {
		t.Error("expected empty ids on bare context")
	}
	ctx = WithSessionID(WithCorrelationID(ctx, "c"), "s")
	if CorrelationID(ctx) != "c" || SessionID(ctx) != "s" {
		t.Error("expected ids from context")
	}
}

func TestDomainHelpers(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{Level: LevelDebug, Output: buf})
	ctx := context.Background()

	LogSyncStarted(ctx, logger, "conversation_list", 2, true)
	LogSyncCompleted(ctx, logger, "conversation_list", "peer_deadline", 0, 0, 3*time.Second)
	LogSignalDiscarded(ctx, logger, "org.kde.kdeconnect.device.conversations.conversationUpdated", "/x", "wrong device")
	LogBusReconnect(ctx, logger, errors.New("eof"), 5*time.Second)
	LogNotification(ctx, logger, "sms_received", "dev")

	out := buf.String()
	for _, want := range []string{"sync listening", "reason=peer_deadline", "signal discarded", "delay_ms=5000", "kind=sms_received"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nothing")
}
