// Package obs wires the process-wide zerolog logger, matching
// cmd/tr-engine/main.go's construction ("new zerolog.Logger with a
// timestamp, leveled from config, component sub-loggers via .With()").
package obs

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the root logger at the given level string (debug, info,
// warn, error). An unrecognized level falls back to info, same as the
// teacher's main.go.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// Component returns a sub-logger tagged with a "component" field, the
// pattern main.go applies for "database", "mqtt", "http", "transcribe".
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
