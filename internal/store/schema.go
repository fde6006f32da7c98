package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

-- One row per replay
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    source TEXT NOT NULL,      -- trace file the branches came from
    interface TEXT NOT NULL,   -- 'serial' or 'strobe'
    config TEXT NOT NULL,      -- JSON predictor geometry
    branches INTEGER NOT NULL,
    correct INTEGER NOT NULL,
    cycles INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

-- One row per trained branch, in training order
CREATE TABLE IF NOT EXISTS records (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    address INTEGER NOT NULL,
    hash_index INTEGER NOT NULL,
    start_address INTEGER NOT NULL,
    taken INTEGER NOT NULL,
    prediction INTEGER NOT NULL,
    y INTEGER NOT NULL,
    weights TEXT NOT NULL,     -- JSON array, bias last
    PRIMARY KEY (run_id, seq)
);
`

// InitSchema creates the schema on an empty database. It is safe to call on an
// existing one.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		// schema_version doesn't exist yet, create fresh schema
		return createSchema(ctx, db)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

// getSchemaVersion returns the current schema version from the database.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}
