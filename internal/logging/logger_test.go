package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for input, want := range tests {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	assert.Equal(t, slog.LevelDebug, LevelFromEnv())

	t.Setenv(EnvLevel, "")
	assert.Equal(t, slog.LevelInfo, LevelFromEnv())
}

func TestNewWithFormat(t *testing.T) {
	for _, format := range []string{"", "text", "JSON"} {
		logger, err := NewWithFormat(slog.LevelInfo, format)
		require.NoError(t, err, format)
		assert.NotNil(t, logger)
	}

	_, err := NewWithFormat(slog.LevelInfo, "xml")
	assert.Error(t, err)
	assert.NotNil(t, NewNop())
}
