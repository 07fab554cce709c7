package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/metrics"
)

// MetricsRepository implements ports.MetricsStoragePort using SQLite.
type MetricsRepository struct {
	conn *Connection
}

var _ ports.MetricsStoragePort = (*MetricsRepository)(nil)

// NewMetricsRepository creates a new MetricsRepository over an open connection.
func NewMetricsRepository(conn *Connection) *MetricsRepository {
	return &MetricsRepository{conn: conn}
}

// SaveSync persists a sync record. Saving the same id twice replaces it.
func (r *MetricsRepository) SaveSync(ctx context.Context, rec *metrics.SyncRecord) error {
	if rec == nil {
		return fmt.Errorf("sync record is nil")
	}
	db, err := r.conn.DB()
	if err != nil {
		return err
	}

	query := `
		INSERT OR REPLACE INTO sync_runs (
			id, profile, device_id, thread_id, outcome, warm, cached,
			received, total, errors, elapsed_ns, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		rec.ID,
		rec.Profile,
		rec.DeviceID,
		rec.ThreadID,
		rec.Outcome,
		rec.Warm,
		rec.Cached,
		rec.Received,
		int64(rec.Total),
		rec.Errors,
		rec.Elapsed.Nanoseconds(),
		rec.StartedAt.UnixMilli(),
		rec.CompletedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save sync record: %w", err)
	}
	return nil
}

// GetSyncs retrieves sync records matching the filter, most recent first.
func (r *MetricsRepository) GetSyncs(ctx context.Context, filter metrics.Filter) ([]metrics.SyncRecord, error) {
	db, err := r.conn.DB()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, profile, device_id, thread_id, outcome, warm, cached,
			received, total, errors, elapsed_ns, started_at, completed_at
		FROM sync_runs
		WHERE 1=1
	`
	args := make([]any, 0)

	if filter.Profile != "" {
		query += " AND profile = ?"
		args = append(args, filter.Profile)
	}

	if filter.DeviceID != "" {
		query += " AND device_id = ?"
		args = append(args, filter.DeviceID)
	}

	if !filter.StartDate.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.StartDate.UnixMilli())
	}

	if !filter.EndDate.IsZero() {
		query += " AND started_at <= ?"
		args = append(args, filter.EndDate.UnixMilli())
	}

	query += " ORDER BY started_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync records: %w", err)
	}
	defer rows.Close()

	var records []metrics.SyncRecord
	for rows.Next() {
		var rec metrics.SyncRecord
		var total, elapsedNs, startedAt, completedAt int64

		err := rows.Scan(
			&rec.ID,
			&rec.Profile,
			&rec.DeviceID,
			&rec.ThreadID,
			&rec.Outcome,
			&rec.Warm,
			&rec.Cached,
			&rec.Received,
			&total,
			&rec.Errors,
			&elapsedNs,
			&startedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}

		rec.Total = uint64(total)
		rec.Elapsed = time.Duration(elapsedNs)
		rec.StartedAt = time.UnixMilli(startedAt)
		rec.CompletedAt = time.UnixMilli(completedAt)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync records: %w", err)
	}

	return records, nil
}

// GetSummary aggregates the records matching the filter. The limit is ignored.
func (r *MetricsRepository) GetSummary(ctx context.Context, filter metrics.Filter) (*metrics.Summary, error) {
	period := metrics.TimePeriod{Start: filter.StartDate, End: filter.EndDate}
	if period.End.IsZero() {
		period.End = time.Now()
	}

	filter.Limit = 0
	records, err := r.GetSyncs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return metrics.Summarize(records, period), nil
}

// Prune deletes runs started before cutoff.
func (r *MetricsRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := r.conn.DB()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM sync_runs WHERE started_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying connection.
func (r *MetricsRepository) Close() error {
	return r.conn.Close()
}
