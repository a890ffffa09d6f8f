package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world/kernel/model"
)

func TestNoOpProviders(t *testing.T) {
	p := None()
	a := model.Agent{ID: "A1", Sidearms: []model.Weapon{{ID: "S1"}}}

	require.False(t, p.Sidearms.IsPresent())
	require.Zero(t, p.Sidearms.MaxSlots(a))
	require.Zero(t, p.Sidearms.CurrentSlotCount(a))
	ok, _ := p.Sidearms.CanAcceptInstance(model.Weapon{}, a)
	require.False(t, ok)
	_, ok = p.Sidearms.TryBuildUpgradeDirective(a)
	require.False(t, ok)

	require.False(t, p.Ammo.IsPresent())
	require.False(t, p.Ammo.ShouldGateOnAmmo())
	require.True(t, p.Ammo.HasAmmoFor(a, model.Weapon{}))
}

func TestOrNone(t *testing.T) {
	p := Providers{}.OrNone()
	require.NotNil(t, p.Sidearms)
	require.NotNil(t, p.Ammo)
	_, isNoop := NewSidearms(nil).(NoSidearms)
	require.True(t, isNoop)
	_, isNoop = NewAmmo(nil, true).(NoAmmo)
	require.True(t, isNoop)
}

type fakeSidearms struct {
	max     int
	propose bool
}

func (f fakeSidearms) MaxSidearms(model.Agent) int { return f.max }
func (f fakeSidearms) CanCarry(model.Agent, model.Weapon) (bool, string) {
	return false, "hands full"
}
func (f fakeSidearms) ProposeUpgrade(model.Agent) (model.Directive, bool) {
	return model.Directive{WeaponID: "W1", Slot: model.SlotPrimary}, f.propose
}

func TestSidearmAdapter(t *testing.T) {
	a := model.Agent{ID: "A1", Sidearms: []model.Weapon{{ID: "S1"}, {ID: "S2"}}}

	p := NewSidearms(fakeSidearms{max: -2, propose: true})
	require.True(t, p.IsPresent())
	require.Zero(t, p.MaxSlots(a), "negative capacity clamps to zero")
	require.Equal(t, 2, p.CurrentSlotCount(a))

	ok, reason := p.CanAcceptInstance(model.Weapon{}, a)
	require.False(t, ok)
	require.Equal(t, "hands full", reason)

	d, ok := p.TryBuildUpgradeDirective(a)
	require.True(t, ok)
	assert.Equal(t, "A1", d.AgentID)
	assert.Equal(t, model.SlotSidearm, d.Slot, "adapter pins the slot kind")
}

func TestSlotRules_MassCap(t *testing.T) {
	r := SlotRules{Slots: 2, MaxMass: 5}
	a := model.Agent{Sidearms: []model.Weapon{{ID: "S1", Mass: 3}}}
	ok, _ := r.CanCarry(a, model.Weapon{Mass: 2})
	require.True(t, ok)
	ok, reason := r.CanCarry(a, model.Weapon{Mass: 2.5})
	require.False(t, ok)
	require.Contains(t, reason, "exceeds")

	ok, _ = SlotRules{Slots: 1}.CanCarry(a, model.Weapon{Mass: 100})
	require.True(t, ok, "zero MaxMass disables the cap")
}

func TestAmmoRules(t *testing.T) {
	cats, err := catalogs.FromDefs(
		catalogs.WeaponDef{ID: "RIFLE", Kind: catalogs.KindRanged, Damage: 1, Cooldown: 1, Accuracy: 1, Range: 1, Mass: 1, AmmoType: "RIFLE"},
		catalogs.WeaponDef{ID: "BOW", Kind: catalogs.KindRanged, Damage: 1, Cooldown: 1, Accuracy: 1, Range: 1, Mass: 1},
	)
	require.NoError(t, err)
	p := NewAmmo(AmmoRules{Cats: cats}, true)
	require.True(t, p.IsPresent())
	require.True(t, p.ShouldGateOnAmmo())

	a := model.Agent{Ammo: map[string]int{"RIFLE": 0}}
	require.False(t, p.HasAmmoFor(a, model.Weapon{Def: "RIFLE"}))
	require.True(t, p.HasAmmoFor(a, model.Weapon{Def: "BOW"}))
	a.Ammo["RIFLE"] = 5
	require.True(t, p.HasAmmoFor(a, model.Weapon{Def: "RIFLE"}))
}

func TestDetect(t *testing.T) {
	tune := tuning.Defaults()
	p := Detect(tune, nil)
	require.False(t, p.Sidearms.IsPresent())
	require.False(t, p.Ammo.IsPresent())

	tune.Sidearms.Enabled = true
	tune.Sidearms.MaxSlots = 4
	tune.Ammo.Enabled = true
	tune.Ammo.Gate = false
	p = Detect(tune, nil)
	require.True(t, p.Sidearms.IsPresent())
	require.Equal(t, 4, p.Sidearms.MaxSlots(model.Agent{}))
	require.True(t, p.Ammo.IsPresent())
	require.False(t, p.Ammo.ShouldGateOnAmmo())
}
