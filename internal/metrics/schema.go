package metrics

import (
	"database/sql"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/logger"
)

// SchemaVersion is bumped whenever the snapshots table changes shape. Older
// databases are recreated, there is no in-place upgrade.
const SchemaVersion = 1

const (
	schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_versions (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    recorded_at     INTEGER NOT NULL,
    latest_latency  REAL NOT NULL CHECK (latest_latency >= 0),
    moving_average  REAL NOT NULL CHECK (moving_average >= 0),
    jank_percentage REAL NOT NULL CHECK (jank_percentage BETWEEN 0 AND 100),
    jank_count      INTEGER NOT NULL CHECK (jank_count >= 0),
    total_frames    INTEGER NOT NULL CHECK (total_frames >= jank_count)
);
CREATE INDEX IF NOT EXISTS snapshots_recorded_at ON snapshots (recorded_at);`

	recordVersionSQL = `INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`

	latestVersionSQL = `SELECT COALESCE(MAX(version), 0) FROM schema_versions`

	tableExistsSQL = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`

	insertSnapshotSQL = `
INSERT INTO snapshots (recorded_at, latest_latency, moving_average, jank_percentage, jank_count, total_frames)
VALUES (?, ?, ?, ?, ?, ?)`
)

// managedTables are dropped when the schema is recreated
var managedTables = []string{"snapshots", "schema_versions"}

// inTx runs fn in a transaction, rolling back unless fn and the commit
// succeed
func inTx(db *sql.DB, log logger.Logger, code errors.ErrorCode, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.New().Wrap(code, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Debug().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.New().Wrap(code, err)
	}
	return nil
}

// InitSchema creates the tables and records SchemaVersion
func InitSchema(db *sql.DB, log logger.Logger) error {
	err := inTx(db, log, ErrSchema, func(tx *sql.Tx) error {
		if _, err := tx.Exec(schemaDDL); err != nil {
			return failed(ErrSchema, "create_tables", "", err)
		}
		if _, err := tx.Exec(recordVersionSQL, SchemaVersion); err != nil {
			return failed(ErrSchema, "record_version", "", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("version", SchemaVersion).Msg("Metrics schema created")
	return nil
}

// GetSchemaVersion returns the recorded schema version, 0 for an empty
// database
func GetSchemaVersion(db *sql.DB) (int, error) {
	exists, err := TableExists(db, "schema_versions")
	if err != nil || !exists {
		return 0, err
	}

	var version int
	if err := db.QueryRow(latestVersionSQL).Scan(&version); err != nil {
		return 0, failed(ErrSchema, "read_version", "schema_versions", err)
	}
	return version, nil
}

// TableExists reports whether table is present
func TableExists(db *sql.DB, table string) (bool, error) {
	var exists bool
	if err := db.QueryRow(tableExistsSQL, table).Scan(&exists); err != nil {
		return false, failed(ErrSchema, "table_exists", table, err)
	}
	return exists, nil
}
