package metrics

import (
	"time"

	"codeberg.org/mutker/telemetrylab/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/telemetrylab/metrics.db"
	defaultBackupDir    = "/var/lib/telemetrylab/backups"
	defaultBatchSize    = 100
	defaultBatchTimeout = 5 * time.Second
	maxBufferFactor     = 10
)

type Config struct {
	Enabled         bool
	DBPath          string
	BatchSize       int
	BatchTimeout    time.Duration
	BackupOnMigrate bool
	BackupDir       string
}

func DefaultConfig() Config {
	return Config{
		Enabled:      false, // Disabled by default
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		BackupDir:    defaultBackupDir,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the rest if metrics is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize <= 0 || c.BatchTimeout <= 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout time.Duration
		}{
			BatchSize:    c.BatchSize,
			BatchTimeout: c.BatchTimeout,
		})
	}
	if c.BackupOnMigrate && c.BackupDir == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "backup directory required when backup_on_migrate is set")
	}
	return nil
}
