// Package logging provides structured logging for biorecords using zerolog.
//
// The CLI builds its logger from a Config (flags, config file and LOG_*
// variables). The server derives one logger per request and carries it in
// the request context, where handlers tag it with the record they work on:
//
//	ctx = logging.WithTaxon(ctx, 24451)
//	ctx = logging.WithEncounter(ctx, 9)
//	logging.FromContext(ctx).Info().Msg("Observation saved")
//
// Code without a context logger falls back to Default, which writes to
// stderr at LOG_LEVEL.
package logging

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var defaultLogger = newDefaultLogger()

func newDefaultLogger() zerolog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") != "" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr)
	if IsTerminal(os.Stderr) && os.Getenv("LOG_FORMAT") != "json" {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// Default returns the process-wide fallback logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
