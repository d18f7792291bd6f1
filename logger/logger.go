// Package logger configures the application-wide zerolog logger.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets up the global logger with the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func Init(levelStr string, pretty bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}

	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	if pretty {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02 15:04:05",
		}
		log.Logger = zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
}

// WithComponent returns a sub-logger tagged with a component name so log
// lines from different parts of the pipeline can be told apart.
func WithComponent(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
