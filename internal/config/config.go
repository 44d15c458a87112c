package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/host"
	"codeberg.org/mutker/telemetrylab/internal/metrics"
	"codeberg.org/mutker/telemetrylab/internal/policy"
	"codeberg.org/mutker/telemetrylab/internal/power"
	"codeberg.org/mutker/telemetrylab/internal/sampler"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "TELEMETRYLAB"
	DefaultLogLevel   = "info"
	DefaultConfigName = "telemetrylab"
	DefaultConfigType = "toml"
)

type Config struct {
	Intensity  int           `mapstructure:"intensity"`
	WindowSize int           `mapstructure:"window_size" validate:"min=1,max=1000000"`
	Measure    string        `mapstructure:"measure" validate:"oneof=work frame"`
	Headless   bool          `mapstructure:"headless"`
	LogLevel   string        `mapstructure:"log_level"`
	Power      PowerConfig   `mapstructure:"power"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Host       HostConfig    `mapstructure:"host"`
}

type PowerConfig struct {
	Mode       string `mapstructure:"mode" validate:"oneof=auto on off"`
	SysfsRoot  string `mapstructure:"sysfs_root" validate:"required"`
	LowBattery int    `mapstructure:"low_battery" validate:"min=0,max=100"`
}

type MetricsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DBPath          string        `mapstructure:"db_path" validate:"required_if=Enabled true"`
	BatchSize       int           `mapstructure:"batch_size" validate:"min=1"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout" validate:"gt=0"`
	BackupOnMigrate bool          `mapstructure:"backup_on_migrate"`
	BackupDir       string        `mapstructure:"backup_dir"`
}

type HostConfig struct {
	StatusInterval time.Duration `mapstructure:"status_interval" validate:"gt=0"`
}

var validate = validator.New()

// Load reads the configuration from defaults, an optional TOML file, .env
// files, TELEMETRYLAB_* environment variables and finally args, each source
// overriding the previous one.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &sources{
		envPrefix: DefaultEnvPrefix,
		dotenv:    []string{".env"},
	}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, flags); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for _, file := range o.dotenv {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, flags, o); err != nil {
		return nil, err
	}

	if debug, _ := flags.GetBool("debug"); debug {
		v.Set("log_level", string(LogLevelDebug))
	} else if verbose, _ := flags.GetBool("verbose"); verbose && !flags.Changed("log-level") {
		v.Set("log_level", string(LogLevelInfo))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	cfg.Intensity = policy.ClampIntensity(cfg.Intensity)
	cfg.LogLevel = ParseLogLevel(cfg.LogLevel).String()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and returns a coded error listing the
// offending fields
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return errFactory.Wrap(errors.ErrInvalidConfig, err)
		}

		invalid := make(map[string]string, len(fieldErrors))
		for _, fe := range fieldErrors {
			invalid[strings.ToLower(fe.Namespace())] = fe.Tag()
		}
		return errFactory.WithData(errors.ErrInvalidConfig, invalid)
	}

	return nil
}

// MetricsConfig returns the recorder configuration
func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:         c.Metrics.Enabled,
		DBPath:          c.Metrics.DBPath,
		BatchSize:       c.Metrics.BatchSize,
		BatchTimeout:    c.Metrics.BatchTimeout,
		BackupOnMigrate: c.Metrics.BackupOnMigrate,
		BackupDir:       c.Metrics.BackupDir,
	}
}

// PowerMode returns the configured power source mode
func (c *Config) PowerMode() power.Mode {
	return power.Mode(c.Power.Mode)
}

// MeasureMode returns the configured sampling measurement
func (c *Config) MeasureMode() sampler.Measure {
	return sampler.Measure(c.Measure)
}

func setDefaults(v *viper.Viper) {
	m := metrics.DefaultConfig()

	v.SetDefault("intensity", policy.DefaultIntensity)
	v.SetDefault("window_size", telemetry.DefaultCapacity)
	v.SetDefault("measure", string(sampler.MeasureWork))
	v.SetDefault("headless", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("power.mode", string(power.ModeAuto))
	v.SetDefault("power.sysfs_root", power.DefaultSysfsRoot)
	v.SetDefault("power.low_battery", power.DefaultLowBattery)
	v.SetDefault("metrics.enabled", m.Enabled)
	v.SetDefault("metrics.db_path", m.DBPath)
	v.SetDefault("metrics.batch_size", m.BatchSize)
	v.SetDefault("metrics.batch_timeout", m.BatchTimeout)
	v.SetDefault("metrics.backup_on_migrate", m.BackupOnMigrate)
	v.SetDefault("metrics.backup_dir", m.BackupDir)
	v.SetDefault("host.status_interval", host.DefaultStatusInterval)
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("telemetrylab", pflag.ContinueOnError)

	flags.String("config", "", "Path to the TOML configuration file")
	flags.Int("intensity", policy.DefaultIntensity, "Workload intensity (1-5)")
	flags.Int("window-size", telemetry.DefaultCapacity, "Number of samples in the rolling window")
	flags.String("measure", string(sampler.MeasureWork), "Latency measurement: work or frame")
	flags.String("power-mode", string(power.ModeAuto), "Power saving source: auto, on or off")
	flags.Bool("metrics", false, "Record snapshots to the metrics database")
	flags.String("metrics-db", "", "Path to the metrics database")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	flags.Bool("headless", false, "Log statistics instead of showing the dashboard")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")

	return flags
}

// flagKeys maps flag names to configuration keys
var flagKeys = map[string]string{
	"intensity":   "intensity",
	"window-size": "window_size",
	"measure":     "measure",
	"power-mode":  "power.mode",
	"metrics":     "metrics.enabled",
	"metrics-db":  "metrics.db_path",
	"log-level":   "log_level",
	"headless":    "headless",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		// Only explicitly set flags override file and environment values
		if !flags.Changed(name) {
			continue
		}
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet, o *sources) error {
	errFactory := errors.New()

	path, _ := flags.GetString("config")
	if path == "" {
		path = o.file
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType(DefaultConfigType)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(DefaultConfigName)
	v.AddConfigPath("/etc")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}
