package capability

import "autoequip.ai/internal/sim/world/kernel/model"

// SidearmProvider is the engine's view of the optional secondary-slot
// extension. Callers must check IsPresent before trusting anything else.
type SidearmProvider interface {
	IsPresent() bool
	MaxSlots(a model.Agent) int
	CurrentSlotCount(a model.Agent) int
	CanAcceptInstance(w model.Weapon, a model.Agent) (bool, string)
	TryBuildUpgradeDirective(a model.Agent) (model.Directive, bool)
}

// AmmoProvider is the engine's view of the optional ammunition extension.
type AmmoProvider interface {
	IsPresent() bool
	ShouldGateOnAmmo() bool
	HasAmmoFor(a model.Agent, w model.Weapon) bool
}

type NoSidearms struct{}

func (NoSidearms) IsPresent() bool                  { return false }
func (NoSidearms) MaxSlots(model.Agent) int         { return 0 }
func (NoSidearms) CurrentSlotCount(model.Agent) int { return 0 }
func (NoSidearms) CanAcceptInstance(model.Weapon, model.Agent) (bool, string) {
	return false, "sidearms unavailable"
}
func (NoSidearms) TryBuildUpgradeDirective(model.Agent) (model.Directive, bool) {
	return model.Directive{}, false
}

type NoAmmo struct{}

func (NoAmmo) IsPresent() bool                           { return false }
func (NoAmmo) ShouldGateOnAmmo() bool                    { return false }
func (NoAmmo) HasAmmoFor(model.Agent, model.Weapon) bool { return true }

// Providers bundles what Detect selected at startup.
type Providers struct {
	Sidearms SidearmProvider
	Ammo     AmmoProvider
}

func None() Providers {
	return Providers{Sidearms: NoSidearms{}, Ammo: NoAmmo{}}
}

// OrNone fills nil providers with their no-op fallback.
func (p Providers) OrNone() Providers {
	if p.Sidearms == nil {
		p.Sidearms = NoSidearms{}
	}
	if p.Ammo == nil {
		p.Ammo = NoAmmo{}
	}
	return p
}
