// Package logging builds the process-wide zerolog logger from configuration.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.elastic.co/ecszerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log sinks and encoding.
type Options struct {
	Level  string
	Format string // "json", "console" or "ecs"; empty picks console in development
	Dev    bool

	File           string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
}

// New returns a logger writing to stdout and, when Options.File is set, to a
// size-rotated file.
func New(opts Options) zerolog.Logger {
	return NewWithWriter(os.Stdout, opts)
}

// NewWithWriter is New with an explicit stdout replacement.
func NewWithWriter(stdout io.Writer, opts Options) zerolog.Logger {
	format := opts.Format
	if format == "" {
		format = "json"
		if opts.Dev {
			format = "console"
		}
	}

	out := stdout
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.FileMaxSizeMB,
			MaxBackups: opts.FileMaxBackups,
			MaxAge:     opts.FileMaxAgeDays,
			Compress:   true,
		})
	}

	var logger zerolog.Logger
	switch format {
	case "ecs":
		logger = ecszerolog.New(out)
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	default:
		logger = zerolog.New(out).With().Timestamp().Logger()
	}

	return logger.Level(ParseLevel(opts.Level)).With().Str("service", "radar").Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
