package corectx

import (
	"os"

	"github.com/rs/zerolog"
)

// logger is the package-level zerolog.Logger every formulacore package
// logs through. It is deliberately quiet by default (Info level) since
// per-cell evaluation is a hot path; SetLogger lets a caller raise it to
// Debug to trace recursive formula descents and dependency-cycle
// discovery, mirroring the singleton-logger pattern vinodismyname-mcpxcel
// uses around zerolog.
var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
	Level(zerolog.InfoLevel).
	With().Timestamp().Logger()

// SetLogger replaces the package-level logger used throughout formulacore.
func SetLogger(l zerolog.Logger) { logger = l }

// Logger returns the current package-level logger.
func Logger() zerolog.Logger { return logger }
