package logging_test

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/shabari/shabari/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("debug", "json", &buf)
	require.NoError(t, err)

	logger.WithField("component", "engine").Debug("rules loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "engine", entry["component"])
	require.Equal(t, "rules loaded", entry["msg"])
	require.Equal(t, "debug", entry["level"])
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("warn", "text", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	require.Empty(t, buf.String())
	logger.Warn("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestNewDefaults(t *testing.T) {
	logger, err := logging.New("", "", &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewInvalid(t *testing.T) {
	_, err := logging.New("loud", "text", &bytes.Buffer{})
	require.Error(t, err)
	_, err = logging.New("info", "xml", &bytes.Buffer{})
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(logging.EnvLevel, "error")
	t.Setenv(logging.EnvJSON, "true")

	logger, err := logging.FromEnv(logging.Settings{Level: "info", Format: "text"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, logrus.ErrorLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	require.True(t, isJSON)
}

func TestFromEnvExplicitSettingsWin(t *testing.T) {
	t.Setenv(logging.EnvLevel, "error")
	t.Setenv(logging.EnvJSON, "true")

	logger, err := logging.FromEnv(logging.Settings{
		Level:     "debug",
		Format:    "text",
		LevelSet:  true,
		FormatSet: true,
	}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, isText)
}

func TestDiscard(t *testing.T) {
	logger := logging.Discard()
	logger.Error("nothing")
	require.Equal(t, logrus.PanicLevel, logger.GetLevel())
}
