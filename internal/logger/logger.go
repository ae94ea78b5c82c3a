package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the application logger instance
var Logger zerolog.Logger

// Init initializes the logger with the given configuration. Output goes to
// w, or stderr when w is nil, so command output on stdout stays clean.
func Init(level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	// Set log level
	logLevel := parseLogLevel(level)
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if strings.ToLower(format) == "json" {
		Logger = zerolog.New(w).With().
			Timestamp().
			Caller().
			Logger()
	} else {
		// Console format with colors
		output := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
		Logger = zerolog.New(output).With().
			Timestamp().
			Logger()
	}

	// Set the global logger
	log.Logger = Logger
}

// parseLogLevel parses string log level to zerolog level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the configured logger instance
func GetLogger() zerolog.Logger {
	return Logger
}
