package metrics_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/logger"
	"codeberg.org/mutker/telemetrylab/internal/metrics"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) metrics.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(dir, "data", "metrics.db")
	cfg.BackupDir = filepath.Join(dir, "backups")
	return cfg
}

func TestRepositoryStoreAndCount(t *testing.T) {
	cfg := testConfig(t)
	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.Store([]telemetry.Snapshot{
		{Timestamp: now, LatestLatency: 10, MovingAverage: 10, TotalFrames: 1},
		{Timestamp: now.Add(50 * time.Millisecond), LatestLatency: 20, MovingAverage: 15, JankPercentage: 50, JankCount: 1, TotalFrames: 2},
	}))
	require.NoError(t, repo.Store(nil))

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.Close())
}

func TestRepositoryRejectsInconsistentSnapshot(t *testing.T) {
	repo, err := metrics.NewRepository(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	err = repo.Store([]telemetry.Snapshot{{Timestamp: time.Now(), JankCount: 3, TotalFrames: 1}})
	require.Error(t, err)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "failed batch is rolled back")
}

func TestRepositoryEmptyPath(t *testing.T) {
	_, err := metrics.NewRepository(metrics.Config{}, logger.Nop())
	assert.Error(t, err)
}

func TestSchemaVersionOfNewDatabase(t *testing.T) {
	cfg := testConfig(t)
	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := metrics.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, metrics.SchemaVersion, version)
}

func TestOutdatedSchemaIsBackedUpAndRecreated(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackupOnMigrate = true
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions (version, applied_at) VALUES (0, datetime('now'));
		INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
		CREATE TABLE snapshots (legacy TEXT);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	backups, err := filepath.Glob(filepath.Join(cfg.BackupDir, "metrics_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	require.NoError(t, repo.Store([]telemetry.Snapshot{{Timestamp: time.Now(), LatestLatency: 1, MovingAverage: 1, TotalFrames: 1}}))
	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 2

	rec, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)
	assert.True(t, rec.Enabled())

	w := telemetry.NewWindow(10)
	for _, latency := range []float64{10, 20, 10, 20, 12} {
		require.NoError(t, rec.Record(t.Context(), w.Push(latency)))
	}
	require.NoError(t, rec.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	var count, jank int
	require.NoError(t, db.QueryRow("SELECT COUNT(*), MAX(jank_count) FROM snapshots").Scan(&count, &jank))
	assert.Equal(t, 5, count)
	assert.Equal(t, 2, jank)
}
