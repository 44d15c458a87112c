package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"github.com/rs/zerolog"
)

// global is swapped by Init and SetOutput while other goroutines log
var global atomic.Pointer[zerolog.Logger]

func init() {
	store(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger())
}

func store(l zerolog.Logger) {
	global.Store(&l)
}

func current() *zerolog.Logger {
	return global.Load()
}

// componentKey is the field naming the emitting component. Nested
// components are joined with a dot.
const componentKey = "component"

func joinComponent(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the global logger. When running under a service manager
// timestamps are omitted, the journal adds its own.
func Init(level string, isService bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.NoColor = true
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	store(zerolog.New(output).With().Timestamp().Logger())
	SetLogLevel(lvl)

	return nil
}

// SetOutput redirects the global logger, used by the dashboard so log lines
// do not tear the terminal UI.
func SetOutput(w io.Writer) {
	store(current().Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}))
}

// ParseLevel maps a configured level name to a LogLevel
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{current().Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{current().Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{current().Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{current().Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(current().Error(), err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{current().Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return withCode(current().Fatal(), err)
}

func withCode(ev *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{ev.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// zlogger adapts a zerolog.Logger to the Logger interface
type zlogger struct {
	zl        zerolog.Logger
	component string
}

// Default returns a Logger backed by the global logger. It resolves the
// global at call time so Init may run after components are built.
func Default() Logger {
	return defaultLogger{}
}

// New returns a Logger writing JSON lines to w, mainly for tests.
func New(w io.Writer) Logger {
	return &zlogger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zlogger{zl: zerolog.Nop()}
}

func (l *zlogger) logger() *zerolog.Logger {
	if l.component == "" {
		return &l.zl
	}
	zl := l.zl.With().Str(componentKey, l.component).Logger()
	return &zl
}

func (l *zlogger) Debug() *LogEvent { return &LogEvent{l.logger().Debug()} }
func (l *zlogger) Info() *LogEvent  { return &LogEvent{l.logger().Info()} }
func (l *zlogger) Warn() *LogEvent  { return &LogEvent{l.logger().Warn()} }
func (l *zlogger) Error() *LogEvent { return &LogEvent{l.logger().Error()} }

func (l *zlogger) ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(l.logger().Error(), err)
}

// With returns a child logger; components nest, "lifecycle" then
// "sampler" logs as "lifecycle.sampler"
func (l *zlogger) With(component string) Logger {
	return &zlogger{zl: l.zl, component: joinComponent(l.component, component)}
}

type defaultLogger struct {
	component string
}

func (d defaultLogger) logger() *zerolog.Logger {
	l := current()
	if d.component == "" {
		return l
	}
	zl := l.With().Str(componentKey, d.component).Logger()
	return &zl
}

func (d defaultLogger) Debug() *LogEvent { return &LogEvent{d.logger().Debug()} }
func (d defaultLogger) Info() *LogEvent  { return &LogEvent{d.logger().Info()} }
func (d defaultLogger) Warn() *LogEvent  { return &LogEvent{d.logger().Warn()} }
func (d defaultLogger) Error() *LogEvent { return &LogEvent{d.logger().Error()} }

func (d defaultLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(d.logger().Error(), err)
}

func (d defaultLogger) With(component string) Logger {
	return defaultLogger{component: joinComponent(d.component, component)}
}
