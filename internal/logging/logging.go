// Package logging configure le logger global zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configure le niveau et le format des logs.
// En JSON, le niveau est écrit dans le champ "severity" reconnu par Cloud Logging.
func Init(level, format string) {
	InitWriter(os.Stdout, level, format)
}

// InitWriter est Init avec une sortie explicite.
func InitWriter(out io.Writer, level, format string) {
	zerolog.SetGlobalLevel(parseLevel(level))
	defer func() { zerolog.DefaultContextLogger = &log.Logger }()

	if format == "console" {
		zerolog.LevelFieldName = "level"
		zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string { return l.String() }
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
		return
	}

	zerolog.LevelFieldName = "severity"
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		return strings.ToUpper(l.String())
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
