package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar names the environment variable that selects the log level.
const LevelEnvVar = "HOOPCOACH_LOG_LEVEL"

// Init initializes the global logger with configuration from environment variables.
// HOOPCOACH_LOG_LEVEL controls the log level: debug, info, warn, error (default: info)
func Init() {
	InitWithLevel(os.Getenv(LevelEnvVar))
}

// InitWithLevel initializes the global logger with an explicit level name.
// An empty or unknown level falls back to info.
func InitWithLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = log.Output(consoleWriter(os.Stderr))
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
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

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
}
