package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zerolog.Disabled, parseLogLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("chatty"))
}

func TestInit_JSONWritesToWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Init("info", "json", &buf)

	l := GetLogger()
	l.Info().Str("component", "test").Msg("hello")
	l.Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
}
