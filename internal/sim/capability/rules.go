package capability

import (
	"fmt"

	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world/kernel/model"
)

// SlotRules is the built-in sidearm subsystem: a fixed slot count and a cap on
// the combined mass of carried sidearms.
type SlotRules struct {
	Slots   int
	MaxMass float64
}

func (r SlotRules) MaxSidearms(model.Agent) int { return r.Slots }

func (r SlotRules) CanCarry(a model.Agent, w model.Weapon) (bool, string) {
	if r.MaxMass <= 0 {
		return true, ""
	}
	total := w.Mass
	for _, s := range a.Sidearms {
		total += s.Mass
	}
	if total > r.MaxMass {
		return false, fmt.Sprintf("sidearm mass %.2f exceeds %.2f", total, r.MaxMass)
	}
	return true, ""
}

// ProposeUpgrade defers to the engine; the rules carry no ranking of their own.
func (r SlotRules) ProposeUpgrade(model.Agent) (model.Directive, bool) {
	return model.Directive{}, false
}

// AmmoRules reads ammunition counts off the agent snapshot.
type AmmoRules struct {
	Cats *catalogs.Catalogs
}

func (r AmmoRules) HasAmmoFor(a model.Agent, w model.Weapon) bool {
	def, ok := r.Cats.Weapon(w.Def)
	if !ok || !def.UsesAmmo() {
		return true
	}
	return a.Ammo[def.AmmoType] > 0
}

// Detect picks the providers once at startup from configuration.
func Detect(t tuning.Tuning, cats *catalogs.Catalogs) Providers {
	p := None()
	if t.Sidearms.Enabled {
		p.Sidearms = NewSidearms(SlotRules{Slots: t.Sidearms.MaxSlots, MaxMass: t.Sidearms.MaxMass})
	}
	if t.Ammo.Enabled {
		p.Ammo = NewAmmo(AmmoRules{Cats: cats}, t.Ammo.Gate)
	}
	return p
}
