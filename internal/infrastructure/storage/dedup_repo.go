package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
)

// DedupRepository implements ports.DedupGate using SQLite. Several processes
// may share one database file.
type DedupRepository struct {
	conn   *Connection
	window time.Duration
	now    func() time.Time
}

var _ ports.DedupGate = (*DedupRepository)(nil)

// NewDedupRepository creates a gate over an open connection. Keys of one
// class and identity whose timestamps lie within window are duplicates.
func NewDedupRepository(conn *Connection, window time.Duration) *DedupRepository {
	return &DedupRepository{conn: conn, window: window, now: time.Now}
}

// CheckAndMark reports whether key was seen and records it if not. The
// lookup and insert run in one immediate transaction.
func (r *DedupRepository) CheckAndMark(ctx context.Context, key ports.DedupKey) (bool, error) {
	db, err := r.conn.DB()
	if err != nil {
		return false, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin dedup transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := key.Timestamp.UnixMilli()
	w := r.window.Milliseconds()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dedup_keys
		WHERE class = ? AND identity = ? AND ts BETWEEN ? AND ?
	`, string(key.Class), key.Identity, ts-w, ts+w).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query dedup key: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO dedup_keys (class, identity, ts, seen_at)
		VALUES (?, ?, ?, ?)
	`, string(key.Class), key.Identity, ts, r.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert dedup key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit dedup key: %w", err)
	}
	return false, nil
}

// Prune deletes keys recorded before cutoff.
func (r *DedupRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := r.conn.DB()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM dedup_keys WHERE seen_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune dedup keys: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts stored keys per class.
func (r *DedupRepository) Stats(ctx context.Context) (ports.DedupStats, error) {
	stats := ports.DedupStats{ByClass: make(map[string]int64)}
	db, err := r.conn.DB()
	if err != nil {
		return stats, err
	}

	rows, err := db.QueryContext(ctx, "SELECT class, COUNT(*) FROM dedup_keys GROUP BY class")
	if err != nil {
		return stats, fmt.Errorf("query dedup stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var class string
		var n int64
		if err := rows.Scan(&class, &n); err != nil {
			return stats, err
		}
		stats.ByClass[class] = n
		stats.Entries += n
	}
	return stats, rows.Err()
}

// Close closes the underlying connection.
func (r *DedupRepository) Close() error {
	return r.conn.Close()
}
