package capability

import "autoequip.ai/internal/sim/world/kernel/model"

// SidearmExtension is the native surface of a loaded sidearm subsystem.
type SidearmExtension interface {
	MaxSidearms(a model.Agent) int
	CanCarry(a model.Agent, w model.Weapon) (bool, string)
	ProposeUpgrade(a model.Agent) (model.Directive, bool)
}

// AmmoExtension is the native surface of a loaded ammunition subsystem.
type AmmoExtension interface {
	HasAmmoFor(a model.Agent, w model.Weapon) bool
}

type sidearmAdapter struct{ ext SidearmExtension }

// NewSidearms adapts a loaded extension. A nil extension yields the no-op
// provider so callers never have to special-case it.
func NewSidearms(ext SidearmExtension) SidearmProvider {
	if ext == nil {
		return NoSidearms{}
	}
	return sidearmAdapter{ext: ext}
}

func (s sidearmAdapter) IsPresent() bool { return true }

func (s sidearmAdapter) MaxSlots(a model.Agent) int {
	n := s.ext.MaxSidearms(a)
	if n < 0 {
		return 0
	}
	return n
}

func (s sidearmAdapter) CurrentSlotCount(a model.Agent) int { return len(a.Sidearms) }

func (s sidearmAdapter) CanAcceptInstance(w model.Weapon, a model.Agent) (bool, string) {
	return s.ext.CanCarry(a, w)
}

func (s sidearmAdapter) TryBuildUpgradeDirective(a model.Agent) (model.Directive, bool) {
	d, ok := s.ext.ProposeUpgrade(a)
	if !ok {
		return model.Directive{}, false
	}
	d.AgentID = a.ID
	d.Slot = model.SlotSidearm
	return d, true
}

type ammoAdapter struct {
	ext  AmmoExtension
	gate bool
}

func NewAmmo(ext AmmoExtension, gate bool) AmmoProvider {
	if ext == nil {
		return NoAmmo{}
	}
	return ammoAdapter{ext: ext, gate: gate}
}

func (a ammoAdapter) IsPresent() bool        { return true }
func (a ammoAdapter) ShouldGateOnAmmo() bool { return a.gate }
func (a ammoAdapter) HasAmmoFor(ag model.Agent, w model.Weapon) bool {
	return a.ext.HasAmmoFor(ag, w)
}
