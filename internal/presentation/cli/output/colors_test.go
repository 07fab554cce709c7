package output

import (
	"os"
	"testing"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestColorSupport(t *testing.T) {
	tty, err := os.Open(os.DevNull)
	if err != nil {
		t.Skipf("no %s: %v", os.DevNull, err)
	}
	defer tty.Close()
	if st, err := tty.Stat(); err != nil || st.Mode()&os.ModeCharDevice == 0 {
		t.Skipf("%s is not a character device here", os.DevNull)
	}

	regular, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer regular.Close()

	tests := []struct {
		name string
		vars map[string]string
		out  *os.File
		want bool
	}{
		{"terminal", map[string]string{"TERM": "xterm-256color"}, tty, true},
		{"dumb terminal", map[string]string{"TERM": "dumb"}, tty, false},
		{"no TERM", nil, tty, false},
		{"redirected", map[string]string{"TERM": "xterm"}, regular, false},
		{"NO_COLOR wins", map[string]string{"NO_COLOR": "", "FORCE_COLOR": "1", "TERM": "xterm"}, tty, false},
		{"FORCE_COLOR on a pipe", map[string]string{"FORCE_COLOR": "1"}, regular, true},
		{"no file", map[string]string{"TERM": "xterm"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := colorSupport(env(tt.vars), tt.out); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsColorSupported_Cached(t *testing.T) {
	if IsColorSupported() != IsColorSupported() {
		t.Error("expected a stable answer")
	}
}
