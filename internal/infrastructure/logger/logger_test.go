package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.NotEmpty(t, cfg.TimeFormat)
}

func TestForEnvironment(t *testing.T) {
	t.Run("development uses console", func(t *testing.T) {
		cfg := ForEnvironment("development", "", "", "")
		assert.Equal(t, "console", cfg.Format)
	})

	t.Run("production uses json", func(t *testing.T) {
		cfg := ForEnvironment("production", "", "", "")
		assert.Equal(t, "json", cfg.Format)
	})

	t.Run("explicit settings override the base", func(t *testing.T) {
		cfg := ForEnvironment("production", "debug", "console", "stderr")
		assert.Equal(t, "debug", cfg.Level)
		assert.Equal(t, "console", cfg.Format)
		assert.Equal(t, "stderr", cfg.Output)
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "default config", cfg: DefaultConfig()},
		{name: "production config", cfg: ProductionConfig()},
		{name: "stderr without time format", cfg: &Config{Level: "warn", Format: "json", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("committed")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"committed"`))
}

func TestNew_UnwritableOutput(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "grid.log")})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
