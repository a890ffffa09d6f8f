package world

import (
	"autoequip.ai/internal/sim/engine"
	"autoequip.ai/internal/sim/tuning"
)

type Config struct {
	Engine engine.Config

	EvalIntervalTicks     uint64
	DirectiveTimeoutTicks uint64
	Workers               int
	TraceAll              bool
	InboxSize             int
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		Engine:                engine.ConfigFromTuning(t),
		EvalIntervalTicks:     uint64(t.Engine.EvalIntervalTicks),
		DirectiveTimeoutTicks: uint64(t.Engine.DirectiveTimeoutTicks),
		Workers:               t.Engine.Workers,
		InboxSize:             4096,
	}
}
