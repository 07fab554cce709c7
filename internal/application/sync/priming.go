package sync

import (
	"context"

	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

// Surface names the remote side a priming call targets.
type Surface string

const (
	SurfaceStore Surface = "store" // Daemon-side conversation store
	SurfaceLive  Surface = "live"  // Phone, via the SMS plugin
)

// PrimingCall is one fire-and-forget request whose answer arrives as signals.
type PrimingCall struct {
	Surface Surface
	Method  string
	Invoke  func(ctx context.Context) error
}

// Prime issues calls in order and returns how many succeeded. The signal
// stream must already exist: the daemon may answer before the call returns.
func Prime(ctx context.Context, calls []PrimingCall, logger *logging.Logger) int {
	ok := 0
	for _, c := range calls {
		if err := c.Invoke(ctx); err != nil {
			logger.WarnContext(ctx, "priming call failed",
				"surface", string(c.Surface),
				"method", c.Method,
				"error", err.Error(),
			)
			continue
		}
		logger.DebugContext(ctx, "priming call sent", "surface", string(c.Surface), "method", c.Method)
		ok++
	}
	return ok
}
