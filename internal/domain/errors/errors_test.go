package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrNotConnected", ErrNotConnected, "bus not connected"},
		{"ErrStreamClosed", ErrStreamClosed, "signal stream closed"},
		{"ErrInvalidPayload", ErrInvalidPayload, "invalid signal payload"},
		{"ErrInvalidTarget", ErrInvalidTarget, "invalid sync target"},
		{"ErrUnknownBackend", ErrUnknownBackend, "unknown dedup backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectsyncError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ConnectsyncError
		want string
	}{
		{
			name: "with cause",
			err:  Transport("connect session bus", ErrNotConnected),
			want: "[TRANSPORT] connect session bus: bus not connected",
		},
		{
			name: "without cause",
			err:  NewError(CodeValidation, "device id required", nil),
			want: "[VALIDATION] device id required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeAlwaysMatchesInvalidPayload(t *testing.T) {
	cases := []error{nil, ErrInvalidPayload, fmt.Errorf("field 3: want int64")}
	for _, cause := range cases {
		err := Decode("conversation message", cause)
		if !Is(err, ErrInvalidPayload) {
			t.Errorf("expected ErrInvalidPayload in chain for cause %v", cause)
		}
		if CodeOf(err) != CodeDecode {
			t.Errorf("expected code %s, got %s", CodeDecode, CodeOf(err))
		}
	}
}

func TestWithContext(t *testing.T) {
	err := WithContext(NewError(CodeStorage, "mark seen", nil), "class", "sms")
	err = WithContext(err, "identity", "42")

	if len(err.Context) != 2 {
		t.Fatalf("expected 2 context entries, got %d", len(err.Context))
	}
	if err.Context["class"] != "sms" {
		t.Errorf("expected class sms, got %v", err.Context["class"])
	}

	bare := &ConnectsyncError{Code: CodeStorage}
	WithContext(bare, "k", 1)
	if bare.Context["k"] != 1 {
		t.Error("expected context map to be created")
	}
}

func TestUnwrapChain(t *testing.T) {
	wrapped := fmt.Errorf("sequence init: %w", Transport("connect", ErrNotConnected))

	if !errors.Is(wrapped, ErrNotConnected) {
		t.Error("expected ErrNotConnected in chain")
	}
	var cerr *ConnectsyncError
	if !As(wrapped, &cerr) {
		t.Fatal("expected ConnectsyncError in chain")
	}
	if cerr.Code != CodeTransport {
		t.Errorf("expected transport code, got %s", cerr.Code)
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("expected empty code for plain error")
	}
}
