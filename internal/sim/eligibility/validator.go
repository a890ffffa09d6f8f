package eligibility

import (
	"fmt"
	"math"

	"autoequip.ai/internal/sim/capability"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/world/kernel/model"
)

const (
	CodeUnknownDef      = "UNKNOWN_DEF"
	CodeForbidden       = "FORBIDDEN"
	CodeOwned           = "OWNED"
	CodeBiocoded        = "BIOCODED"
	CodeIncapable       = "INCAPABLE"
	CodeBrawler         = "BRAWLER"
	CodeSkill           = "SKILL"
	CodeTooHeavy        = "TOO_HEAVY"
	CodeNoAmmo          = "NO_AMMO"
	CodeSidearmRejected = "SIDEARM_REJECTED"
)

type Rejection struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (r Rejection) String() string {
	if r.Detail == "" {
		return r.Code
	}
	return r.Code + ": " + r.Detail
}

// Validator answers whether an agent may use a weapon. It has no state of its
// own beyond the catalog and the extension providers it was built with.
type Validator struct {
	cats      *catalogs.Catalogs
	providers capability.Providers
}

func New(cats *catalogs.Catalogs, p capability.Providers) *Validator {
	return &Validator{cats: cats, providers: p.OrNone()}
}

// CanUse runs the checks in order and stops at the first failure.
func (v *Validator) CanUse(a model.Agent, w model.Weapon) (bool, string) {
	if r, bad := v.Check(a, w); bad {
		return false, r.String()
	}
	return true, ""
}

func (v *Validator) CanUseAsSidearm(a model.Agent, w model.Weapon) (bool, string) {
	if r, bad := v.CheckSidearm(a, w); bad {
		return false, r.String()
	}
	return true, ""
}

func (v *Validator) Check(a model.Agent, w model.Weapon) (Rejection, bool) {
	// Ownership and forbidden flags.
	if w.Forbidden {
		return Rejection{Code: CodeForbidden}, true
	}
	if w.OwnerID != "" && w.OwnerID != a.ID {
		return Rejection{Code: CodeOwned, Detail: "owned by " + w.OwnerID}, true
	}
	if w.BiocodedTo != "" && w.BiocodedTo != a.ID {
		return Rejection{Code: CodeBiocoded, Detail: "biocoded to " + w.BiocodedTo}, true
	}
	def, ok := v.cats.Weapon(w.Def)
	if !ok {
		return Rejection{Code: CodeUnknownDef, Detail: w.Def}, true
	}

	// Skills and traits.
	if a.HasTrait(model.TraitIncapableOfViolence) {
		return Rejection{Code: CodeIncapable}, true
	}
	skill, skillName := a.Skills.Melee, "melee"
	if def.Ranged() {
		if a.HasTrait(model.TraitBrawler) {
			return Rejection{Code: CodeBrawler, Detail: "brawler avoids ranged weapons"}, true
		}
		skill, skillName = a.Skills.Shooting, "shooting"
	}
	if def.MinSkill > 0 && skill < def.MinSkill {
		return Rejection{Code: CodeSkill, Detail: fmt.Sprintf("requires %s %d, has %d", skillName, def.MinSkill, skill)}, true
	}

	// Carry budget.
	if a.CarryCapacity > 0 && a.CarriedMass+w.Mass > a.CarryCapacity {
		return Rejection{Code: CodeTooHeavy, Detail: fmt.Sprintf("%.2f + %.2f > %.2f", a.CarriedMass, w.Mass, a.CarryCapacity)}, true
	}

	// Extensions.
	ammo := v.providers.Ammo
	if ammo.IsPresent() && ammo.ShouldGateOnAmmo() && def.UsesAmmo() && !ammo.HasAmmoFor(a, w) {
		return Rejection{Code: CodeNoAmmo, Detail: def.AmmoType}, true
	}
	return Rejection{}, false
}

// CheckReplacing is Check for a pickup that drops displaced in the same move:
// the carry budget and sidearm mass are counted without it. A nil displaced
// is a plain Check.
func (v *Validator) CheckReplacing(a model.Agent, w model.Weapon, displaced *model.Weapon) (Rejection, bool) {
	return v.Check(without(a, displaced), w)
}

// CheckSidearmReplacing is CheckReplacing for the sidearm slots.
func (v *Validator) CheckSidearmReplacing(a model.Agent, w model.Weapon, displaced *model.Weapon) (Rejection, bool) {
	return v.CheckSidearm(without(a, displaced), w)
}

// without is the agent as it stands once d has been dropped.
func without(a model.Agent, d *model.Weapon) model.Agent {
	if d == nil {
		return a
	}
	a.CarriedMass = math.Max(0, a.CarriedMass-d.Mass)
	if a.Primary != nil && a.Primary.ID == d.ID {
		a.Primary = nil
	}
	kept := make([]model.Weapon, 0, len(a.Sidearms))
	for _, s := range a.Sidearms {
		if s.ID != d.ID {
			kept = append(kept, s)
		}
	}
	a.Sidearms = kept
	return a
}

// CheckSidearm is Check plus the sidearm extension's own acceptance test.
func (v *Validator) CheckSidearm(a model.Agent, w model.Weapon) (Rejection, bool) {
	if r, bad := v.Check(a, w); bad {
		return r, true
	}
	sa := v.providers.Sidearms
	if !sa.IsPresent() {
		return Rejection{Code: CodeSidearmRejected, Detail: "sidearms unavailable"}, true
	}
	if ok, reason := sa.CanAcceptInstance(w, a); !ok {
		return Rejection{Code: CodeSidearmRejected, Detail: reason}, true
	}
	return Rejection{}, false
}
