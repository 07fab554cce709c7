package dedup

import (
	"context"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

// PruneOnce removes keys older than retention.
func PruneOnce(ctx context.Context, gate ports.DedupGate, retention time.Duration, logger *logging.Logger) (int64, error) {
	n, err := gate.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.WarnContext(ctx, "dedup prune failed", "error", err.Error())
		return 0, err
	}
	if n > 0 {
		logger.DebugContext(ctx, "dedup keys pruned", "count", n)
	}
	return n, nil
}

// RunPruner prunes immediately and then every interval until ctx ends.
func RunPruner(ctx context.Context, gate ports.DedupGate, retention, interval time.Duration, logger *logging.Logger) {
	if retention <= 0 || interval <= 0 {
		return
	}
	_, _ = PruneOnce(ctx, gate, retention, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = PruneOnce(ctx, gate, retention, logger)
		}
	}
}
