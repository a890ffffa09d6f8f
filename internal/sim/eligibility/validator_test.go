package eligibility

import (
	"testing"

	"github.com/stretchr/testify/require"

	"autoequip.ai/internal/sim/capability"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/world/kernel/model"
)

func testCatalog(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.FromDefs(
		catalogs.WeaponDef{ID: "RIFLE", Kind: catalogs.KindRanged, Damage: 10, Cooldown: 1, Accuracy: 0.8, Range: 30, Mass: 4, MinSkill: 5, AmmoType: "RIFLE"},
		catalogs.WeaponDef{ID: "SWORD", Kind: catalogs.KindMelee, Damage: 12, Cooldown: 1.5, Accuracy: 1, Range: 1, Mass: 2, MinSkill: 3},
	)
	require.NoError(t, err)
	return c
}

func baseAgent() model.Agent {
	return model.Agent{
		ID:            "A1",
		Skills:        model.Skills{Melee: 6, Shooting: 6},
		CarryCapacity: 35,
		CarriedMass:   10,
		Ammo:          map[string]int{"RIFLE": 10},
	}
}

func TestCheck_Order(t *testing.T) {
	v := New(testCatalog(t), capability.None())

	cases := []struct {
		name   string
		agent  func(*model.Agent)
		weapon model.Weapon
		code   string
	}{
		{"ok", nil, model.Weapon{Def: "RIFLE", Mass: 4}, ""},
		{"unknown def", nil, model.Weapon{Def: "LASER"}, CodeUnknownDef},
		{"forbidden beats everything after it", func(a *model.Agent) { a.Traits = []string{model.TraitIncapableOfViolence} },
			model.Weapon{Def: "RIFLE", Forbidden: true}, CodeForbidden},
		{"owned by other", nil, model.Weapon{Def: "RIFLE", OwnerID: "A2"}, CodeOwned},
		{"owned by self", nil, model.Weapon{Def: "RIFLE", OwnerID: "A1", Mass: 4}, ""},
		{"biocoded", nil, model.Weapon{Def: "RIFLE", BiocodedTo: "A9"}, CodeBiocoded},
		{"incapable", func(a *model.Agent) { a.Traits = []string{model.TraitIncapableOfViolence} }, model.Weapon{Def: "SWORD"}, CodeIncapable},
		{"brawler ranged", func(a *model.Agent) { a.Traits = []string{model.TraitBrawler} }, model.Weapon{Def: "RIFLE"}, CodeBrawler},
		{"brawler melee", func(a *model.Agent) { a.Traits = []string{model.TraitBrawler} }, model.Weapon{Def: "SWORD", Mass: 2}, ""},
		{"shooting too low", func(a *model.Agent) { a.Skills.Shooting = 4 }, model.Weapon{Def: "RIFLE"}, CodeSkill},
		{"melee too low", func(a *model.Agent) { a.Skills.Melee = 2 }, model.Weapon{Def: "SWORD"}, CodeSkill},
		{"too heavy", func(a *model.Agent) { a.CarriedMass = 32 }, model.Weapon{Def: "RIFLE", Mass: 4}, CodeTooHeavy},
		{"exact budget fits", func(a *model.Agent) { a.CarriedMass = 31 }, model.Weapon{Def: "RIFLE", Mass: 4}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := baseAgent()
			if tc.agent != nil {
				tc.agent(&a)
			}
			r, bad := v.Check(a, tc.weapon)
			if tc.code == "" {
				require.False(t, bad, "unexpected rejection %s", r)
				ok, reason := v.CanUse(a, tc.weapon)
				require.True(t, ok)
				require.Empty(t, reason)
				return
			}
			require.True(t, bad)
			require.Equal(t, tc.code, r.Code)
			ok, reason := v.CanUse(a, tc.weapon)
			require.False(t, ok)
			require.Contains(t, reason, tc.code)
		})
	}
}

func TestCheck_AmmoGate(t *testing.T) {
	cats := testCatalog(t)
	a := baseAgent()
	a.Ammo = nil
	w := model.Weapon{Def: "RIFLE", Mass: 4}

	ok, _ := New(cats, capability.None()).CanUse(a, w)
	require.True(t, ok, "absent ammo extension never gates")

	ungated := capability.Providers{Ammo: capability.NewAmmo(capability.AmmoRules{Cats: cats}, false)}
	ok, _ = New(cats, ungated).CanUse(a, w)
	require.True(t, ok)

	gated := capability.Providers{Ammo: capability.NewAmmo(capability.AmmoRules{Cats: cats}, true)}
	r, bad := New(cats, gated).Check(a, w)
	require.True(t, bad)
	require.Equal(t, CodeNoAmmo, r.Code)

	ok, _ = New(cats, gated).CanUse(a, model.Weapon{Def: "SWORD", Mass: 2})
	require.True(t, ok, "melee weapons use no ammo")
}

func TestCheckSidearm(t *testing.T) {
	cats := testCatalog(t)
	a := baseAgent()
	w := model.Weapon{Def: "SWORD", Mass: 2}

	r, bad := New(cats, capability.None()).CheckSidearm(a, w)
	require.True(t, bad)
	require.Equal(t, CodeSidearmRejected, r.Code)

	p := capability.Providers{Sidearms: capability.NewSidearms(capability.SlotRules{Slots: 2, MaxMass: 1})}
	ok, reason := New(cats, p).CanUseAsSidearm(a, w)
	require.False(t, ok)
	require.Contains(t, reason, "exceeds")

	p = capability.Providers{Sidearms: capability.NewSidearms(capability.SlotRules{Slots: 2, MaxMass: 5})}
	ok, _ = New(cats, p).CanUseAsSidearm(a, w)
	require.True(t, ok)

	// Base checks still run first.
	r, bad = New(cats, p).CheckSidearm(a, model.Weapon{Def: "SWORD", Forbidden: true})
	require.True(t, bad)
	require.Equal(t, CodeForbidden, r.Code)
}

func TestCheckReplacing_CountsNetMass(t *testing.T) {
	v := New(testCatalog(t), capability.None())
	a := baseAgent()
	old := model.Weapon{ID: "P", Def: "RIFLE", Mass: 4}
	a.Primary = &old
	a.CarriedMass = 32
	w := model.Weapon{ID: "W", Def: "RIFLE", Mass: 4}

	r, bad := v.Check(a, w)
	require.True(t, bad)
	require.Equal(t, CodeTooHeavy, r.Code)

	_, bad = v.CheckReplacing(a, w, &old)
	require.False(t, bad, "dropping the held rifle frees its mass")

	_, bad = v.CheckReplacing(a, model.Weapon{ID: "W", Def: "RIFLE", Mass: 8}, &old)
	require.True(t, bad, "a heavier swap can still overflow")

	_, bad = v.CheckReplacing(a, w, nil)
	require.True(t, bad)
	require.Same(t, &old, a.Primary, "the caller's agent is untouched")
	require.Equal(t, 32.0, a.CarriedMass)
}

func TestCheckSidearmReplacing_FreesSidearmMass(t *testing.T) {
	cats := testCatalog(t)
	p := capability.Providers{Sidearms: capability.NewSidearms(capability.SlotRules{Slots: 2, MaxMass: 4})}
	v := New(cats, p)
	a := baseAgent()
	a.Sidearms = []model.Weapon{{ID: "S1", Def: "SWORD", Mass: 2}, {ID: "S2", Def: "SWORD", Mass: 2}}
	w := model.Weapon{ID: "W", Def: "SWORD", Mass: 2}

	r, bad := v.CheckSidearm(a, w)
	require.True(t, bad)
	require.Equal(t, CodeSidearmRejected, r.Code)

	_, bad = v.CheckSidearmReplacing(a, w, &a.Sidearms[1])
	require.False(t, bad)
	require.Len(t, a.Sidearms, 2)
}
