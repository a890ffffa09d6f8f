package scoring

import (
	"math"

	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world/kernel/model"
)

const minCooldown = 0.1

type Weights struct {
	Power    float64
	Accuracy float64
	Range    float64
	Mass     float64
	Skill    float64
	Quality  [7]float64
}

func WeightsFromTuning(t tuning.Tuning) Weights {
	return Weights{
		Power:    t.Weights.Power,
		Accuracy: t.Weights.Accuracy,
		Range:    t.Weights.Range,
		Mass:     t.Weights.Mass,
		Skill:    t.Weights.Skill,
		Quality:  t.Multipliers(),
	}
}

// Scorer is a pure function of (agent, weapon, weights, catalog).
type Scorer struct {
	cats *catalogs.Catalogs
	w    Weights
}

func NewScorer(cats *catalogs.Catalogs, w Weights) *Scorer {
	return &Scorer{cats: cats, w: w}
}

func (s *Scorer) Weights() Weights { return s.w }

// WithWeights is a scorer over the same catalog with different weights.
func (s *Scorer) WithWeights(w Weights) *Scorer {
	return &Scorer{cats: s.cats, w: w}
}

func (s *Scorer) Score(a model.Agent, w model.Weapon) float64 {
	def, ok := s.cats.Weapon(w.Def)
	if !ok {
		return 0
	}
	cd := def.Cooldown
	if cd < minCooldown {
		cd = minCooldown
	}
	dps := def.Damage / cd
	base := s.w.Power*dps + s.w.Accuracy*def.Accuracy*100 + s.w.Range*def.Range

	q := 1.0
	if w.Quality.Valid() {
		q = s.w.Quality[w.Quality]
	}
	score := base * q

	if a.CarryCapacity > 0 {
		score -= s.w.Mass * (w.Mass / a.CarryCapacity) * 100
	}

	skill := a.Skills.Melee
	if def.Ranged() {
		skill = a.Skills.Shooting
	}
	score += s.w.Skill * float64(skill)

	// Keep scores comparable across platforms when logged or indexed.
	return quantize(score)
}

// quantize snaps v to the micro-unit grid every score lives on.
func quantize(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
