package scoring

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"autoequip.ai/internal/sim/world/kernel/model"
)

type hasher struct {
	h   interface{ Write([]byte) (int, error) }
	buf [8]byte
}

func (x *hasher) str(s string) {
	_, _ = x.h.Write([]byte(s))
	_, _ = x.h.Write([]byte{0})
}

func (x *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(x.buf[:], v)
	_, _ = x.h.Write(x.buf[:])
}

func (x *hasher) f64(v float64) { x.u64(math.Float64bits(v)) }

// AgentFingerprint covers everything about an agent that feeds a score:
// carried equipment, skills, traits and carry budget.
func AgentFingerprint(a model.Agent) uint64 {
	h := fnv.New64a()
	x := &hasher{h: h}
	x.str(a.ID)
	if a.Primary != nil {
		x.str(a.Primary.ID)
		x.u64(weaponFingerprint(a.Primary))
	} else {
		x.str("")
	}
	x.u64(uint64(len(a.Sidearms)))
	for i := range a.Sidearms {
		x.str(a.Sidearms[i].ID)
		x.u64(weaponFingerprint(&a.Sidearms[i]))
	}
	x.u64(uint64(a.Skills.Melee))
	x.u64(uint64(a.Skills.Shooting))
	for _, t := range a.SortedTraits() {
		x.str(t)
	}
	x.f64(a.CarryCapacity)
	x.f64(a.CarriedMass)
	return h.Sum64()
}

// WeaponFingerprint covers the stat-affecting fields of a weapon.
func WeaponFingerprint(w model.Weapon) uint64 { return weaponFingerprint(&w) }

func weaponFingerprint(w *model.Weapon) uint64 {
	h := fnv.New64a()
	x := &hasher{h: h}
	x.str(w.Def)
	x.u64(uint64(w.Quality))
	x.f64(w.Mass)
	x.str(w.BiocodedTo)
	return h.Sum64()
}

func combine(agentFP, weaponFP, gen uint64) uint64 {
	h := fnv.New64a()
	x := &hasher{h: h}
	x.u64(agentFP)
	x.u64(weaponFP)
	x.u64(gen)
	return h.Sum64()
}
