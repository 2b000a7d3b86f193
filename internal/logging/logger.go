// Package logging wraps the ambient logging library for the log sink
// collaborator: five severity levels and a message. Core packages take
// a Logger value (a thin wrapper embedding zerolog.Logger, whose events
// are *zerolog.Event) through their constructors, matching the original
// design note that the log sink is a handle passed by reference rather
// than a module-level singleton. storage.SQLiteStore takes a bare
// zerolog.Logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Sink is the log-sink collaborator interface named in the spec's
// external interfaces section.
type Sink interface {
	Fatal() *zerolog.Event
	Error() *zerolog.Event
	Warn() *zerolog.Event
	Info() *zerolog.Event
	Debug() *zerolog.Event
	With() zerolog.Context
}

// Logger adapts a zerolog.Logger to Sink. Loggers derived via Component
// tag every event with the emitting component.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger writing to w. format selects between a
// human-readable console writer (format != "json") and structured JSON
// output (format == "json"); level parses via zerolog.ParseLevel, and
// an unrecognized level falls back to Info.
func New(w io.Writer, format, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return Logger{Logger: l}
}

// NewDefault builds a Logger writing human-readable output to stderr
// at info level, the configuration used when no config file overrides
// it.
func NewDefault() Logger {
	return New(os.Stderr, "console", "info")
}

// Component returns a child logger tagged with the given component
// name, mirroring the teacher's pattern of deriving scoped loggers via
// With() rather than formatting the component into every message.
func (l Logger) Component(name string) Logger {
	return Logger{Logger: l.With().Str("component", name).Logger()}
}
