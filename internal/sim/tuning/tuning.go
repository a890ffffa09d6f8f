package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"autoequip.ai/internal/sim/world/kernel/model"
)

type Tuning struct {
	Engine             Engine             `yaml:"engine"`
	Weights            Weights            `yaml:"weights"`
	QualityMultipliers map[string]float64 `yaml:"quality_multipliers"`
	Sidearms           Sidearms           `yaml:"sidearms"`
	Ammo               Ammo               `yaml:"ammo"`
}

type Engine struct {
	MinImprovement         float64 `yaml:"min_improvement"`
	Radius                 float64 `yaml:"radius"`
	AllowSlotReplacement   bool    `yaml:"allow_slot_replacement"`
	AllowForcedReplacement bool    `yaml:"allow_forced_replacement"`
	SecondaryUpgrades      bool    `yaml:"secondary_upgrades"`
	DeferToExtension       bool    `yaml:"defer_to_extension"`
	EvalIntervalTicks      int     `yaml:"eval_interval_ticks"`
	DirectiveTimeoutTicks  int     `yaml:"directive_timeout_ticks"`
	Workers                int     `yaml:"workers"`
}

type Weights struct {
	Power    float64 `yaml:"power"`
	Accuracy float64 `yaml:"accuracy"`
	Range    float64 `yaml:"range"`
	Mass     float64 `yaml:"mass"`
	Skill    float64 `yaml:"skill"`
}

type Sidearms struct {
	Enabled  bool    `yaml:"enabled"`
	MaxSlots int     `yaml:"max_slots"`
	MaxMass  float64 `yaml:"max_mass"`
}

type Ammo struct {
	Enabled bool `yaml:"enabled"`
	Gate    bool `yaml:"gate"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		Engine: Engine{
			MinImprovement:         1.0,
			Radius:                 30,
			AllowSlotReplacement:   true,
			AllowForcedReplacement: false,
			SecondaryUpgrades:      true,
			EvalIntervalTicks:      250,
			DirectiveTimeoutTicks:  600,
			Workers:                1,
		},
		Weights: Weights{
			Power:    1.0,
			Accuracy: 0.5,
			Range:    0.2,
			Mass:     0.5,
			Skill:    0.4,
		},
		QualityMultipliers: map[string]float64{
			"AWFUL":      0.8,
			"POOR":       0.9,
			"NORMAL":     1.0,
			"GOOD":       1.1,
			"EXCELLENT":  1.2,
			"MASTERWORK": 1.35,
			"LEGENDARY":  1.5,
		},
		Sidearms: Sidearms{MaxSlots: 3, MaxMass: 10},
		Ammo:     Ammo{Gate: true},
	}
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.Engine.Workers <= 0 {
		t.Engine.Workers = 1
	}
	if t.Engine.DirectiveTimeoutTicks <= 0 {
		t.Engine.DirectiveTimeoutTicks = t.Engine.EvalIntervalTicks
	}
	norm := make(map[string]float64, len(t.QualityMultipliers))
	for k, v := range t.QualityMultipliers {
		norm[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	t.QualityMultipliers = norm
}

func (t Tuning) Validate() error {
	if t.Engine.MinImprovement < 0 {
		return fmt.Errorf("engine.min_improvement must be >= 0")
	}
	if t.Engine.Radius <= 0 {
		return fmt.Errorf("engine.radius must be > 0")
	}
	if t.Engine.EvalIntervalTicks <= 0 {
		return fmt.Errorf("engine.eval_interval_ticks must be > 0")
	}
	if t.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be >= 1")
	}
	if t.Sidearms.Enabled && t.Sidearms.MaxSlots < 0 {
		return fmt.Errorf("sidearms.max_slots must be >= 0")
	}
	for _, name := range model.QualityNames() {
		m, ok := t.QualityMultipliers[name]
		if !ok {
			return fmt.Errorf("quality_multipliers.%s missing", name)
		}
		if m <= 0 {
			return fmt.Errorf("quality_multipliers.%s must be > 0", name)
		}
	}
	return nil
}

// Multipliers returns the quality table indexed by tier.
func (t Tuning) Multipliers() [7]float64 {
	var out [7]float64
	for i, name := range model.QualityNames() {
		out[i] = t.QualityMultipliers[name]
	}
	return out
}
