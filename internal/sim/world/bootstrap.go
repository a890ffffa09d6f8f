package world

import (
	"go.uber.org/zap"

	"autoequip.ai/internal/sim/availability"
	"autoequip.ai/internal/sim/capability"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/eligibility"
	"autoequip.ai/internal/sim/forced"
	"autoequip.ai/internal/sim/scoring"
	"autoequip.ai/internal/sim/tuning"
)

// Build wires a runtime from loaded catalogs and tuning, detecting the
// optional sidearm and ammo providers from tuning. cfg is usually
// ConfigFromTuning(t) with command-line overrides applied.
func Build(cfg Config, t tuning.Tuning, cats *catalogs.Catalogs, log *zap.Logger, sinks Sinks) *Runtime {
	providers := capability.Detect(t, cats)
	scorer := scoring.NewScorer(cats, scoring.WeightsFromTuning(t))
	return New(cfg, Parts{
		Availability: availability.New(),
		Scores:       scoring.NewCache(scorer),
		Forced:       forced.New(),
		Validator:    eligibility.New(cats, providers),
		Providers:    providers,
	}, log, sinks)
}
