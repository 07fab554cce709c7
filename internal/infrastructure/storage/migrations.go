package storage

import (
	"database/sql"
	"fmt"
)

// applyMigrations applies all database migrations in order.
func applyMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	migrations := []struct {
		version int
		name    string
		sql     string
	}{
		{1, "create_dedup_keys_table", createDedupKeysTable},
		{2, "create_dedup_indices", createDedupIndices},
		{3, "create_sync_runs_table", createSyncRunsTable},
		{4, "create_sync_runs_indices", createSyncRunsIndices},
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(db, m.version)
		if err != nil {
			return fmt.Errorf("could not check migration %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("could not apply migration %d (%s): %w", m.version, m.name, err)
		}
		if err := recordMigration(db, m.version, m.name); err != nil {
			return fmt.Errorf("could not record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table.
func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func isMigrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func recordMigration(db *sql.DB, version int, name string) error {
	_, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// Migration SQL statements

// ts is the event time and seen_at the time the key was recorded, both in
// unix milliseconds.
const createDedupKeysTable = `
CREATE TABLE dedup_keys (
	class TEXT NOT NULL,
	identity TEXT NOT NULL,
	ts INTEGER NOT NULL,
	seen_at INTEGER NOT NULL,
	PRIMARY KEY (class, identity, ts)
);
`

const createDedupIndices = `
CREATE INDEX idx_dedup_keys_seen_at ON dedup_keys(seen_at);
`

// Times are unix milliseconds, elapsed is nanoseconds.
const createSyncRunsTable = `
CREATE TABLE sync_runs (
	id TEXT PRIMARY KEY,
	profile TEXT NOT NULL,
	device_id TEXT NOT NULL,
	thread_id INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	warm INTEGER NOT NULL DEFAULT 0,
	cached INTEGER NOT NULL DEFAULT 0,
	received INTEGER NOT NULL DEFAULT 0,
	total INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	elapsed_ns INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL,
	completed_at INTEGER NOT NULL
);
`

const createSyncRunsIndices = `
CREATE INDEX idx_sync_runs_started_at ON sync_runs(started_at);
CREATE INDEX idx_sync_runs_device ON sync_runs(device_id, started_at);
`
