package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/logger"
)

const backupTimeFormat = "20060102T150405Z"

// ValidateAndUpdateSchema leaves a current database alone. Any other
// version is dropped and recreated, after a copy to cfg.BackupDir when
// cfg.BackupOnMigrate is set and the database is not empty.
func ValidateAndUpdateSchema(db *sql.DB, cfg Config, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	log.Debug().Int("found", version).Int("want", SchemaVersion).Msg("Checking metrics schema")

	switch {
	case version == SchemaVersion:
		return nil
	case version != 0:
		log.Warn().Int("found", version).Msg("Metrics schema outdated, recreating")
		if cfg.BackupOnMigrate {
			if _, err := backupDatabase(db, cfg.BackupDir, version, log); err != nil {
				return err
			}
		}
	}

	if err := dropTables(db, log); err != nil {
		return err
	}
	return InitSchema(db, log)
}

// backupDatabase copies the live database with VACUUM INTO, which must run
// outside a transaction
func backupDatabase(db *sql.DB, dir string, version int, log logger.Logger) (string, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", failed(ErrSchema, "create_backup_dir", dir, err)
	}

	name := fmt.Sprintf("metrics_v%d_%s.db", version, time.Now().UTC().Format(backupTimeFormat))
	path := filepath.Join(dir, name)

	stmt := "VACUUM INTO '" + strings.ReplaceAll(path, "'", "''") + "'"
	if _, err := db.Exec(stmt); err != nil {
		return "", failed(ErrSchema, "backup", path, err)
	}

	log.Info().Str("path", path).Int("version", version).Msg("Metrics database backed up")
	return path, nil
}

func dropTables(db *sql.DB, log logger.Logger) error {
	return inTx(db, log, ErrSchema, func(tx *sql.Tx) error {
		for _, table := range managedTables {
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return failed(ErrSchema, "drop_table", table, err)
			}
		}
		return nil
	})
}
