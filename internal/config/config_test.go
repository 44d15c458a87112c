package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/config"
	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/power"
	"codeberg.org/mutker/telemetrylab/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "telemetrylab.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// noDotenv keeps a stray .env in the package directory out of the tests
var noDotenv = config.WithDotenv()

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
intensity = 4
window_size = 300
measure = "frame"
log_level = "debug"
headless = true

[power]
mode = "on"
low_battery = 15

[metrics]
enabled = true
db_path = "/path/to/metrics.db"
batch_size = 10
batch_timeout = "2s"

[host]
status_interval = "1s"
`)

	// Set environment variable to point to the test config file
	t.Setenv("TELEMETRYLAB_CONFIG", configPath)

	cfg, err := config.Load(nil, noDotenv)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Intensity)
	assert.Equal(t, 300, cfg.WindowSize)
	assert.Equal(t, sampler.MeasureFrame, cfg.MeasureMode())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Headless)
	assert.Equal(t, power.ModeOn, cfg.PowerMode())
	assert.Equal(t, 15, cfg.Power.LowBattery)
	assert.Equal(t, power.DefaultSysfsRoot, cfg.Power.SysfsRoot)

	m := cfg.MetricsConfig()
	assert.True(t, m.Enabled)
	assert.Equal(t, "/path/to/metrics.db", m.DBPath)
	assert.Equal(t, 10, m.BatchSize)
	assert.Equal(t, 2*time.Second, m.BatchTimeout)
	assert.Equal(t, time.Second, cfg.Host.StatusInterval)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, ""))

	cfg, err := config.Load(nil, noDotenv)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Intensity)
	assert.Equal(t, 600, cfg.WindowSize)
	assert.Equal(t, sampler.MeasureWork, cfg.MeasureMode())
	assert.Equal(t, power.ModeAuto, cfg.PowerMode())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Headless)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadInvalidFile(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, "This is not a valid TOML file"))

	_, err := config.Load(nil, noDotenv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
	assert.Equal(t, errors.ErrReadConfig, errors.CodeOf(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(nil, noDotenv, config.WithConfigFile(filepath.Join(t.TempDir(), "missing.toml")))
	require.Error(t, err)
	assert.Equal(t, errors.ErrReadConfig, errors.CodeOf(err))
}

func TestLoadInvalidLogLevel(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, `log_level = "loud"`))

	_, err := config.Load(nil, noDotenv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_log_level")
}

func TestLoadClampsIntensity(t *testing.T) {
	tests := []struct {
		name string
		set  string
		want int
	}{
		{name: "above range", set: "10", want: 5},
		{name: "below range", set: "0", want: 1},
		{name: "in range", set: "3", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, "intensity = "+tt.set))

			cfg, err := config.Load(nil, noDotenv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Intensity)
		})
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "measure", content: `measure = "gpu"`, field: "config.measure"},
		{name: "power mode", content: "[power]\nmode = \"sometimes\"", field: "config.power.mode"},
		{name: "window size", content: "window_size = 0", field: "config.windowsize"},
		{name: "low battery", content: "[power]\nlow_battery = 101", field: "config.power.lowbattery"},
		{name: "metrics path", content: "[metrics]\nenabled = true\ndb_path = \"\"", field: "config.metrics.dbpath"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, tt.content))

			_, err := config.Load(nil, noDotenv)
			require.Error(t, err)
			assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, "intensity = 2\nwindow_size = 100\nmeasure = \"frame\""))
	t.Setenv("TELEMETRYLAB_WINDOW_SIZE", "200")
	t.Setenv("TELEMETRYLAB_POWER_MODE", "off")

	cfg, err := config.Load([]string{"--intensity", "4", "--headless"}, noDotenv)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Intensity, "flag overrides file")
	assert.Equal(t, 200, cfg.WindowSize, "env overrides file")
	assert.Equal(t, power.ModeOff, cfg.PowerMode(), "env overrides default")
	assert.Equal(t, sampler.MeasureFrame, cfg.MeasureMode(), "file overrides default")
	assert.True(t, cfg.Headless)
}

func TestLoadConfigFlag(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, "intensity = 1"))
	path := writeConfig(t, "intensity = 5")

	cfg, err := config.Load([]string{"--config", path}, noDotenv)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Intensity)
}

func TestLoadDebugFlag(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, `log_level = "error"`))

	cfg, err := config.Load([]string{"--debug"}, noDotenv)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadUnknownFlag(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, ""))

	_, err := config.Load([]string{"--fanspeed", "80"}, noDotenv)
	require.Error(t, err)
	assert.Equal(t, errors.ErrBindFlags, errors.CodeOf(err))
}

func TestLoadDotenv(t *testing.T) {
	t.Setenv("TELEMETRYLAB_CONFIG", writeConfig(t, ""))
	// Registered so the variable set by godotenv is removed after the test
	t.Setenv("TELEMETRYLAB_MEASURE", "")
	require.NoError(t, os.Unsetenv("TELEMETRYLAB_MEASURE"))

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TELEMETRYLAB_MEASURE=frame\n"), 0o600))

	cfg, err := config.Load(nil, config.WithDotenv(envFile, filepath.Join(t.TempDir(), "absent.env")))
	require.NoError(t, err)
	assert.Equal(t, sampler.MeasureFrame, cfg.MeasureMode())
}
