package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"autoequip.ai/internal/sim/world/kernel/model"
)

func TestLoad_ConfigsTuning(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	require.NoError(t, err)
	require.Equal(t, 1.0, tune.Engine.MinImprovement)
	require.Equal(t, 30.0, tune.Engine.Radius)
	require.False(t, tune.Engine.AllowForcedReplacement)
	require.Equal(t, 1.5, tune.Multipliers()[model.QualityLegendary])
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte("engine:\n  radius: 12\n"), 0o644))

	tune, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 12.0, tune.Engine.Radius)
	require.Equal(t, 250, tune.Engine.EvalIntervalTicks)
	require.Equal(t, Defaults().Weights, tune.Weights)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Tuning)
		want   string
	}{
		{"negative threshold", func(t *Tuning) { t.Engine.MinImprovement = -1 }, "min_improvement"},
		{"zero radius", func(t *Tuning) { t.Engine.Radius = 0 }, "radius"},
		{"zero interval", func(t *Tuning) { t.Engine.EvalIntervalTicks = 0 }, "eval_interval_ticks"},
		{"missing tier", func(t *Tuning) { delete(t.QualityMultipliers, "GOOD") }, "quality_multipliers.GOOD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tune := Defaults()
			tc.mutate(&tune)
			require.ErrorContains(t, tune.Validate(), tc.want)
		})
	}
	require.NoError(t, Defaults().Validate())
}

func TestNormalize_LowercaseTierKeys(t *testing.T) {
	tune := Defaults()
	tune.QualityMultipliers = map[string]float64{"legendary": 2}
	tune.Engine.Workers = 0
	tune.Engine.DirectiveTimeoutTicks = 0
	tune.Normalize()
	require.Equal(t, 2.0, tune.QualityMultipliers["LEGENDARY"])
	require.Equal(t, 1, tune.Engine.Workers)
	require.Equal(t, tune.Engine.EvalIntervalTicks, tune.Engine.DirectiveTimeoutTicks)
}
