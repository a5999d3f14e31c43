package cisco

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel selects the log level of NewLogger when level is empty.
const EnvLogLevel = "CISCO_LOG_LEVEL"

// NewLogger returns a console logger writing to w.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	if level == "" {
		level = os.Getenv(EnvLogLevel)
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).
		Level(ParseLevel(level)).
		With().Timestamp().Str("component", ProxyType).
		Logger()
	return logger
}

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
