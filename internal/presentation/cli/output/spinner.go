package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a one-line progress message until stopped.
type Spinner struct {
	message  string
	writer   io.Writer
	colored  bool
	interval time.Duration

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// SpinnerOption configures a Spinner.
type SpinnerOption func(*Spinner)

// WithSpinnerWriter sets where frames are drawn, usually stderr.
func WithSpinnerWriter(w io.Writer) SpinnerOption {
	return func(s *Spinner) { s.writer = w }
}

// WithSpinnerColor enables or disables the colored frame.
func WithSpinnerColor(enabled bool) SpinnerOption {
	return func(s *Spinner) { s.colored = enabled }
}

// NewSpinner creates a stopped spinner showing message.
func NewSpinner(message string, opts ...SpinnerOption) *Spinner {
	s := &Spinner{
		message:  message,
		writer:   os.Stderr,
		colored:  true,
		interval: 80 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins drawing. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.animate(s.done)
}

// Stop ends the animation and clears the line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	close(s.done)
	s.done = nil
	s.mu.Unlock()

	s.wg.Wait()
	_, _ = fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

func (s *Spinner) animate(done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			frame := paint(spinnerFrames[i%len(spinnerFrames)], ColorCyan, s.colored)
			_, _ = fmt.Fprintf(s.writer, "\r%s %s", frame, s.message)
		}
	}
}
