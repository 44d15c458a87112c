package metrics

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/logger"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"

	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db  *sql.DB
	log logger.Logger
	mu  sync.Mutex
}

// NewRepository opens the SQLite database at cfg.DBPath, creating the
// directory and the schema when needed
func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, failed(ErrStorageInit, "create_directory", cfg.DBPath, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL&_auto_vacuum=2")
	if err != nil {
		return nil, failed(ErrStorageInit, "open_database", cfg.DBPath, err)
	}

	if err := ValidateAndUpdateSchema(db, cfg, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().Str("path", cfg.DBPath).Msg("Recording snapshots")

	return &repository{db: db, log: log}, nil
}

// Store inserts the batch in a single transaction, all or nothing
func (r *repository) Store(snapshots []telemetry.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := inTx(r.db, r.log, ErrTransaction, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(insertSnapshotSQL)
		if err != nil {
			return errors.New().Wrap(ErrTransaction, err)
		}
		defer stmt.Close()

		for _, s := range snapshots {
			if _, err := stmt.Exec(
				s.Timestamp.UnixMilli(),
				s.LatestLatency, s.MovingAverage,
				s.JankPercentage, s.JankCount, s.TotalFrames,
			); err != nil {
				return errors.New().Wrap(ErrTransaction, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int("records", len(snapshots)).Msg("Flushed snapshots")
	return nil
}

func (r *repository) Count() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, errors.New().Wrap(ErrTransaction, err)
	}
	return n, nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return failed(ErrStorageClose, "checkpoint_wal", "", err)
	}
	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}
