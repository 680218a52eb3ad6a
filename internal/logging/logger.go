package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// ARCHIVER_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// Output is line-delimited JSON on stderr, which CloudWatch Logs ingests as-is.
func Init() {
	setLevel()
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// InitConsole is Init with human-readable output instead of JSON, for the CLI.
func InitConsole() {
	setLevel()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func setLevel() {
	level := os.Getenv("ARCHIVER_LOG_LEVEL")
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
