// Package tracelog wires the module onto a single process-wide
// zerolog logger, matching the logging style used throughout the
// teacher package (log "github.com/rs/zerolog/log", .Info().Msgf...).
package tracelog

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var level atomic.Int32

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	level.Store(int32(zerolog.InfoLevel))
}

// SetLevel sets the process-wide log level (spec §9: "Log level is
// process-wide with explicit set/get; no other globals in the core").
func SetLevel(l zerolog.Level) {
	level.Store(int32(l))
	zerolog.SetGlobalLevel(l)
}

// Level returns the current process-wide log level.
func Level() zerolog.Level {
	return zerolog.Level(level.Load())
}

// Logger returns the configured process-wide logger.
func Logger() zerolog.Logger {
	return log.Logger
}
