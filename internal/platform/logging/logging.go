// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the logger's outputs.
type Options struct {
	Env   string
	Level string
	// File, when set, adds a size-rotated JSON file sink next to stdout.
	File string
}

// New returns a timestamped zerolog logger writing to stdout (console
// format in development) and optionally to a rotated file.
func New(opts Options) zerolog.Logger {
	return NewWithStdout(os.Stdout, opts)
}

// NewWithStdout is New with an explicit stdout writer.
func NewWithStdout(stdout io.Writer, opts Options) zerolog.Logger {
	var console io.Writer = stdout
	if strings.EqualFold(opts.Env, "development") {
		console = zerolog.ConsoleWriter{Out: stdout}
	}

	var w io.Writer = console
	if opts.File != "" {
		w = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	return zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", "healthhub").
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
