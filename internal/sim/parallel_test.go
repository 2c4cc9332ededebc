package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odeguard/internal/config"
)

func TestSweepKeepsOrder(t *testing.T) {
	base := config.GetPreset("decay", "loose")
	factors := []float64{0.25, 0.5, 0.75}

	runs, err := New().Sweep(context.Background(), ScaleFactorSweep(base, factors), 2)
	require.NoError(t, err)
	require.Len(t, runs, len(factors))

	for i, run := range runs {
		require.NotNil(t, run)
		assert.NoError(t, run.Err)
		assert.Equal(t, factors[i], run.Config.Guard.ScaleFactor)
		assert.GreaterOrEqual(t, run.Result.Metrics["min_component"], 0.0)
		assert.Equal(t, run.Result.Stats.Steps, run.Guard.Invocations,
			"every run counts only its own guard invocations")
	}
	assert.Equal(t, 0.5, base.Guard.ScaleFactor, "sweep does not modify the base config")
}

func TestSweepRecordsIntegrationFailures(t *testing.T) {
	ok := config.DefaultConfig()
	failing := config.DefaultConfig()
	failing.MaxSteps = 2

	runs, err := New().Sweep(context.Background(), []*config.Config{ok, failing}, 0)
	require.NoError(t, err)
	assert.NoError(t, runs[0].Err)
	assert.Error(t, runs[1].Err)
}

func TestSweepStopsOnSetupError(t *testing.T) {
	bad := config.DefaultConfig()
	bad.Problem = "pendulum"

	runs, err := New().Sweep(context.Background(), []*config.Config{config.DefaultConfig(), bad}, 1)
	assert.Error(t, err)
	assert.Nil(t, runs)
}
