package ports

import (
	"context"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/domain/metrics"
)

// MetricsStoragePort stores sync history.
// Implementations might use SQLite or keep records in memory.
type MetricsStoragePort interface {
	// SaveSync persists the outcome of one sync run.
	SaveSync(ctx context.Context, rec *metrics.SyncRecord) error

	// GetSyncs retrieves runs matching the filter, most recent first.
	GetSyncs(ctx context.Context, filter metrics.Filter) ([]metrics.SyncRecord, error)

	// GetSummary aggregates runs matching the filter per profile.
	GetSummary(ctx context.Context, filter metrics.Filter) (*metrics.Summary, error)

	// Prune removes runs started before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the backing store.
	Close() error
}
