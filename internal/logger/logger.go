package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger interface for structured logging. Fields are alternating key/value
// pairs.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, err error, fields ...interface{})
	With(fields ...interface{}) Logger
}

// Options configures a ZeroLogger
type Options struct {
	Level     string
	Console   bool
	Output    io.Writer
	Component string
}

// ZeroLogger implements Logger on top of zerolog
type ZeroLogger struct {
	zl zerolog.Logger
}

// New creates a logger writing JSON lines, or human readable lines when
// Console is set.
func New(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.Component != "" {
		ctx = ctx.Str("component", opts.Component)
	}
	return &ZeroLogger{zl: ctx.Logger()}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

// ParseLevel converts a level name into a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Info logs an info message
func (l *ZeroLogger) Info(msg string, fields ...interface{}) {
	l.zl.Info().Fields(toFields(fields)).Msg(msg)
}

// Error logs an error message
func (l *ZeroLogger) Error(msg string, err error, fields ...interface{}) {
	l.zl.Error().Err(err).Fields(toFields(fields)).Msg(msg)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(msg string, fields ...interface{}) {
	l.zl.Warn().Fields(toFields(fields)).Msg(msg)
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(msg string, fields ...interface{}) {
	l.zl.Debug().Fields(toFields(fields)).Msg(msg)
}

// Fatal logs a fatal error and exits
func (l *ZeroLogger) Fatal(msg string, err error, fields ...interface{}) {
	l.zl.Fatal().Err(err).Fields(toFields(fields)).Msg(msg)
}

// With returns a child logger carrying the given fields on every entry
func (l *ZeroLogger) With(fields ...interface{}) Logger {
	return &ZeroLogger{zl: l.zl.With().Fields(toFields(fields)).Logger()}
}

func toFields(fields []interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, (len(fields)+1)/2)
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if i+1 >= len(fields) {
			m[key] = "(MISSING)"
			break
		}
		m[key] = fields[i+1]
	}
	return m
}
