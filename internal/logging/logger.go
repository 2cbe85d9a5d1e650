package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug", "trace":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) hclog() hclog.Level {
	switch l {
	case LevelDebug:
		return hclog.Debug
	case LevelWarn:
		return hclog.Warn
	case LevelError:
		return hclog.Error
	default:
		return hclog.Info
	}
}

// Format represents the log output format.
type Format int

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs logs in JSON format.
	FormatJSON
)

// ParseFormat parses a string into a Format.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
	// WithRequestID returns a new logger with the given request ID.
	WithRequestID(requestID string) Logger
	// WithFields returns a new logger with the given fields.
	WithFields(keysAndValues ...interface{}) Logger
	// Named returns a sub-logger for a component.
	Named(name string) Logger
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path.
	Output string
	// Writer overrides Output when set.
	Writer io.Writer
}

type logger struct {
	hc hclog.Logger
}

// New creates a new Logger with the given configuration. An unopenable
// output file falls back to stdout.
func New(cfg Config) Logger {
	return &logger{hc: hclog.New(&hclog.LoggerOptions{
		Name:       "obacore",
		Level:      ParseLevel(cfg.Level).hclog(),
		Output:     resolveOutput(cfg),
		JSONFormat: ParseFormat(cfg.Format) == FormatJSON,
	})}
}

func resolveOutput(cfg Config) io.Writer {
	if cfg.Writer != nil {
		return cfg.Writer
	}
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return os.Stdout
	}
	return f
}

// NewDefault creates a new Logger with default settings.
func NewDefault() Logger {
	return New(Config{Level: "info", Format: "text"})
}

// NewNop creates a no-op logger that discards all output.
func NewNop() Logger {
	return &logger{hc: hclog.NewNullLogger()}
}

// FromHCLog wraps an existing hclog logger.
func FromHCLog(hc hclog.Logger) Logger {
	return &logger{hc: hc}
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.hc.Debug(msg, keysAndValues...)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.hc.Info(msg, keysAndValues...)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.hc.Warn(msg, keysAndValues...)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.hc.Error(msg, keysAndValues...)
}

func (l *logger) WithRequestID(requestID string) Logger {
	return &logger{hc: l.hc.With("request_id", requestID)}
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = keysAndValues[:len(keysAndValues)-1]
	}
	return &logger{hc: l.hc.With(keysAndValues...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{hc: l.hc.Named(name)}
}
