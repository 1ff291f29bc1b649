package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is a logging threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

// ParseLevel parses a level name, case-insensitively. Unknown names map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Format is the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses "text" or "json"; anything else is text.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is the structured logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	// WithConnID returns a logger that tags every record with conn_id.
	WithConnID(connID string) Logger
	// WithFields returns a logger that adds the given pairs to every record.
	WithFields(keysAndValues ...interface{}) Logger
	// SetLevel changes the threshold of this logger and every logger
	// derived from the same root.
	SetLevel(level Level)
}

// Config selects level, format and destination. Output is "stdout",
// "stderr" or a file path opened for append.
type Config struct {
	Level  string
	Format string
	Output string
}

type logger struct {
	s     *slog.Logger
	level *slog.LevelVar
}

// New creates a Logger from cfg. An unopenable file falls back to stderr.
func New(cfg Config) Logger {
	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			out = os.Stderr
		} else {
			out = f
		}
	}
	return NewWithWriter(out, ParseLevel(cfg.Level), ParseFormat(cfg.Format))
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(w io.Writer, level Level, format Format) Logger {
	lv := new(slog.LevelVar)
	lv.Set(level.slog())
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &logger{s: slog.New(h), level: lv}
}

// NewDefault creates an info-level text logger on stderr.
func NewDefault() Logger {
	return NewWithWriter(os.Stderr, LevelInfo, FormatText)
}

func (l *logger) Debug(msg string, kv ...interface{}) { l.s.Debug(msg, kv...) }
func (l *logger) Info(msg string, kv ...interface{})  { l.s.Info(msg, kv...) }
func (l *logger) Warn(msg string, kv ...interface{})  { l.s.Warn(msg, kv...) }
func (l *logger) Error(msg string, kv ...interface{}) { l.s.Error(msg, kv...) }

func (l *logger) WithConnID(connID string) Logger {
	return &logger{s: l.s.With("conn_id", connID), level: l.level}
}

func (l *logger) WithFields(kv ...interface{}) Logger {
	return &logger{s: l.s.With(kv...), level: l.level}
}

func (l *logger) SetLevel(level Level) { l.level.Set(level.slog()) }

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (n nopLogger) WithConnID(string) Logger         { return n }
func (n nopLogger) WithFields(...interface{}) Logger { return n }
func (nopLogger) SetLevel(Level)                     {}
