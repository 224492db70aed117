package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "db-backup"

// Init sets up the global zerolog logger based on the provided level string.
func Init(levelString string) {
	logLevel := zerolog.InfoLevel
	parsedLevel, err := zerolog.ParseLevel(levelString)
	if err != nil {
		log.Warn().Str("provided_level", levelString).Err(err).Msg("Invalid LOG_LEVEL, defaulting to 'info'")
	} else if parsedLevel != zerolog.NoLevel {
		logLevel = parsedLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Colour only when someone is likely watching a terminal.
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    logLevel > zerolog.DebugLevel,
		TimeFormat: time.RFC3339,
	}).With().Str("service", serviceName).Logger()

	log.Debug().Str("log_level", logLevel.String()).Msg("Logger initialized")
}
