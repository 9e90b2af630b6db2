// Package logging builds the logrus loggers used by the library and CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Environment variables read by FromEnv.
const (
	EnvLevel = "SHABARI_LOG_LEVEL"
	EnvJSON  = "SHABARI_JSON_LOG"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to w at level in the given format.
func New(level, format string, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q (valid: text, json)", format)
	}
	return logger, nil
}

// Discard returns a logger that drops everything. It is the library default.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// Settings are the logger level and format, with whether each was set
// explicitly (a command-line flag) and so must not be overridden.
type Settings struct {
	Level     string
	Format    string
	LevelSet  bool
	FormatSet bool
}

// FromEnv builds a logger writing to w. SHABARI_LOG_LEVEL and
// SHABARI_JSON_LOG apply only to settings that were not set explicitly.
func FromEnv(s Settings, w io.Writer) (*logrus.Logger, error) {
	level, format := s.Level, s.Format
	if v := os.Getenv(EnvLevel); v != "" && !s.LevelSet {
		level = v
	}
	if v := os.Getenv(EnvJSON); v != "" && !s.FormatSet {
		if on, err := strconv.ParseBool(v); err == nil && on {
			format = FormatJSON
		}
	}
	return New(level, format, w)
}
