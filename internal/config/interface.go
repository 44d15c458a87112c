package config

import "strings"

// Option adjusts how Load finds its sources
type Option func(*sources)

type sources struct {
	file      string
	envPrefix string
	dotenv    []string
}

// WithConfigFile reads path instead of searching the default locations.
// The --config flag still wins.
func WithConfigFile(path string) Option {
	return func(s *sources) { s.file = path }
}

// WithEnvPrefix replaces the TELEMETRYLAB environment prefix
func WithEnvPrefix(prefix string) Option {
	return func(s *sources) { s.envPrefix = prefix }
}

// WithDotenv sets the .env files loaded before the environment is read.
// Missing files are skipped; with no arguments none are loaded.
func WithDotenv(files ...string) Option {
	return func(s *sources) { s.dotenv = files }
}

// LogLevel is a configured log level name
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// ParseLogLevel normalises case and the "warn" alias
func ParseLogLevel(s string) LogLevel {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if l == "warn" {
		return LogLevelWarning
	}
	return l
}

func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	}
	return false
}

func (l LogLevel) String() string { return string(l) }
