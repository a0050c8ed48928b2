package telemetry

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_Validation(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "gridsync"}, zap.NewNop())
	assert.ErrorContains(t, err, "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
	assert.ErrorContains(t, err, "application name")
}

func TestWithScreenLabels(t *testing.T) {
	var screen, operation string
	WithScreenLabels(context.Background(), "closing", "commit", func(ctx context.Context) {
		screen, _ = pprof.Label(ctx, "screen")
		operation, _ = pprof.Label(ctx, "operation")
	})

	assert.Equal(t, "closing", screen)
	assert.Equal(t, "commit", operation)
}
