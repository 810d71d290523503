// Package logging builds the process-wide zerolog logger from the
// [logging] config section.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirrors config.LoggingConfig so this package stays free of the
// config import.
type Options struct {
	Level      string
	File       string // empty: console only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool // plain JSON on stderr instead of the console writer
}

// Logger is the result of New. Close flushes and releases the log file.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// ParseLevel accepts zerolog level names plus "warning".
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// New returns a logger writing to stderr and, when File is set, to a
// rotating file as JSON.
func New(opts Options) (*Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var console io.Writer = os.Stderr
	if !opts.JSON {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	if lvl < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
	}

	l := &Logger{}
	out := console
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, l.file)
	}
	l.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return l, nil
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Hook forwards every event at or above its level to fn. The daemon uses it
// to mirror log lines onto the websocket feed.
type Hook struct {
	Min zerolog.Level
	Fn  func(level zerolog.Level, msg string)
}

func (h Hook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if h.Fn == nil || level < h.Min || msg == "" {
		return
	}
	h.Fn(level, msg)
}
