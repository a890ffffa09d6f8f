package model

import "sort"

const (
	TraitIncapableOfViolence = "incapable_of_violence"
	TraitBrawler             = "brawler"
)

type Skills struct {
	Melee    int `json:"melee"`
	Shooting int `json:"shooting"`
}

// Agent is the read-only view of a pawn the engine needs. It is rebuilt from
// the world mirror on every evaluation and never stored by the engine.
type Agent struct {
	ID            string         `json:"id"`
	MapID         string         `json:"map_id"`
	Pos           Vec3i          `json:"pos"`
	Primary       *Weapon        `json:"primary,omitempty"`
	Sidearms      []Weapon       `json:"sidearms,omitempty"`
	Skills        Skills         `json:"skills"`
	Traits        []string       `json:"traits,omitempty"`
	CarryCapacity float64        `json:"carry_capacity"`
	CarriedMass   float64        `json:"carried_mass"`
	Ammo          map[string]int `json:"ammo,omitempty"`
	Drafted       bool           `json:"drafted,omitempty"`
	Downed        bool           `json:"downed,omitempty"`
}

func (a Agent) HasTrait(t string) bool {
	for _, x := range a.Traits {
		if x == t {
			return true
		}
	}
	return false
}

// Holds reports whether the weapon id is the primary or one of the sidearms.
func (a Agent) Holds(weaponID string) bool {
	if weaponID == "" {
		return false
	}
	if a.Primary != nil && a.Primary.ID == weaponID {
		return true
	}
	for _, s := range a.Sidearms {
		if s.ID == weaponID {
			return true
		}
	}
	return false
}

// HeldIDs returns every carried weapon id, primary first.
func (a Agent) HeldIDs() []string {
	out := make([]string, 0, 1+len(a.Sidearms))
	if a.Primary != nil {
		out = append(out, a.Primary.ID)
	}
	for _, s := range a.Sidearms {
		out = append(out, s.ID)
	}
	return out
}

func (a Agent) SortedTraits() []string {
	out := append([]string(nil), a.Traits...)
	sort.Strings(out)
	return out
}

// Clone deep-copies the slices and maps so a snapshot handed to a worker
// cannot observe later mutations of the mirror.
func (a Agent) Clone() Agent {
	c := a
	if a.Primary != nil {
		p := *a.Primary
		c.Primary = &p
	}
	c.Sidearms = append([]Weapon(nil), a.Sidearms...)
	c.Traits = append([]string(nil), a.Traits...)
	if a.Ammo != nil {
		c.Ammo = make(map[string]int, len(a.Ammo))
		for k, v := range a.Ammo {
			c.Ammo[k] = v
		}
	}
	return c
}
