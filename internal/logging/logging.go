// Package logging configures the process-wide zerolog logger from the
// environment.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLevel  = "WMV_LOG_LEVEL"
	EnvFormat = "WMV_LOG_FORMAT"
)

// Init builds the root logger. Console output by default; setting
// WMV_LOG_FORMAT=json switches to structured JSON.
func Init(app string) zerolog.Logger {
	var logger zerolog.Logger
	if strings.EqualFold(os.Getenv(EnvFormat), "json") {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
	logger = logger.Level(parseLevel(os.Getenv(EnvLevel))).
		With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

func parseLevel(raw string) zerolog.Level {
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
