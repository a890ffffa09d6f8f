package main

import (
	"fmt"
	"math/rand"
	"sort"

	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/world/kernel/model"
)

type job struct {
	due uint64
	d   model.Directive
}

// sim is a toy world that plays the job executor: it scatters weapons,
// walks agents around and carries out the directives it receives a few
// ticks later.
type sim struct {
	rng    *rand.Rand
	mapID  string
	cats   *catalogs.Catalogs
	radius int
	delay  uint64

	tick       uint64
	nextWeapon int
	agents     map[string]*model.Agent
	loose      map[string]model.Weapon
	jobs       []job

	done, failed int
}

func newSim(seed int64, cats *catalogs.Catalogs, mapID string, radius int, delay uint64) *sim {
	if radius < 1 {
		radius = 1
	}
	return &sim{
		rng:    rand.New(rand.NewSource(seed)),
		mapID:  mapID,
		cats:   cats,
		radius: radius,
		delay:  delay,
		agents: map[string]*model.Agent{},
		loose:  map[string]model.Weapon{},
	}
}

// bootstrap spawns the initial population. Agents start with a random
// primary, so some of the scattered weapons are upgrades and some are not.
func (s *sim) bootstrap(agents, weapons int) []protocol.Event {
	var out []protocol.Event
	for i := 0; i < weapons; i++ {
		out = append(out, s.spawnWeapon())
	}
	for i := 0; i < agents; i++ {
		id := fmt.Sprintf("A%03d", i+1)
		a := &model.Agent{
			ID:     id,
			MapID:  s.mapID,
			Pos:    s.randomPos(),
			Skills: model.Skills{Melee: s.rng.Intn(11), Shooting: s.rng.Intn(11)},
		}
		w := s.newWeapon()
		w.Pos = a.Pos
		a.Primary = &w
		s.agents[id] = a
		clone := a.Clone()
		out = append(out, protocol.Event{Type: protocol.TypeAgentSpawn, Agent: &clone})
	}
	return out
}

func (s *sim) onDirective(d model.Directive) {
	s.jobs = append(s.jobs, job{due: s.tick + s.delay, d: d})
}

// advance moves the world one tick: finished jobs, some wandering, the odd
// new or vanished weapon, then the TICK itself.
func (s *sim) advance() []protocol.Event {
	s.tick++
	var out []protocol.Event

	keep := s.jobs[:0]
	for _, j := range s.jobs {
		if j.due > s.tick {
			keep = append(keep, j)
			continue
		}
		out = append(out, s.execute(j.d)...)
	}
	s.jobs = keep

	for _, id := range s.agentIDs() {
		if s.rng.Intn(10) != 0 {
			continue
		}
		a := s.agents[id]
		a.Pos.X += s.rng.Intn(5) - 2
		a.Pos.Z += s.rng.Intn(5) - 2
		clone := a.Clone()
		out = append(out, protocol.Event{Type: protocol.TypeAgentUpdate, Agent: &clone})
	}

	switch s.rng.Intn(20) {
	case 0:
		out = append(out, s.spawnWeapon())
	case 1:
		if ids := s.looseIDs(); len(ids) > 0 {
			id := ids[s.rng.Intn(len(ids))]
			delete(s.loose, id)
			out = append(out, protocol.Event{Type: protocol.TypeWeaponDespawn, WeaponID: id})
		}
	case 2:
		if ids := s.looseIDs(); len(ids) > 0 {
			id := ids[s.rng.Intn(len(ids))]
			w := s.loose[id]
			w.Quality = model.Quality(s.rng.Intn(int(model.QualityLegendary) + 1))
			s.loose[id] = w
			q := w.Quality
			out = append(out, protocol.Event{Type: protocol.TypeWeaponQuality, WeaponID: id, Quality: &q})
		}
	}

	return append(out, protocol.Event{Type: protocol.TypeTick, Tick: s.tick})
}

// execute carries out one directive. The displaced weapon is dropped at the
// agent's feet.
func (s *sim) execute(d model.Directive) []protocol.Event {
	a := s.agents[d.AgentID]
	w, ok := s.loose[d.WeaponID]
	if a == nil || !ok {
		s.failed++
		if a == nil {
			return nil
		}
		return []protocol.Event{{Type: protocol.TypeDirectiveDone, AgentID: d.AgentID, WeaponID: d.WeaponID, OK: protocol.Bool(false)}}
	}

	delete(s.loose, w.ID)
	out := []protocol.Event{{Type: protocol.TypeWeaponPickup, WeaponID: w.ID, AgentID: a.ID}}
	w.MapID = a.MapID
	w.Pos = a.Pos

	var dropped *model.Weapon
	switch d.Slot {
	case model.SlotSidearm:
		if d.DisplacedID != "" && d.SlotIndex < len(a.Sidearms) && a.Sidearms[d.SlotIndex].ID == d.DisplacedID {
			old := a.Sidearms[d.SlotIndex]
			dropped = &old
			a.Sidearms[d.SlotIndex] = w
		} else {
			a.Sidearms = append(a.Sidearms, w)
		}
	default:
		dropped = a.Primary
		a.Primary = &w
	}
	if dropped != nil {
		dw := *dropped
		dw.Pos = a.Pos
		dw.MapID = a.MapID
		dw.SpawnTick = s.tick
		s.loose[dw.ID] = dw
		out = append(out, protocol.Event{Type: protocol.TypeWeaponSpawn, Weapon: &dw})
	}
	clone := a.Clone()
	out = append(out,
		protocol.Event{Type: protocol.TypeAgentUpdate, Agent: &clone},
		protocol.Event{Type: protocol.TypeDirectiveDone, AgentID: a.ID, WeaponID: w.ID, OK: protocol.Bool(true)},
	)
	s.done++
	return out
}

func (s *sim) spawnWeapon() protocol.Event {
	w := s.newWeapon()
	w.Pos = s.randomPos()
	w.SpawnTick = s.tick
	s.loose[w.ID] = w
	return protocol.Event{Type: protocol.TypeWeaponSpawn, Weapon: &w}
}

func (s *sim) newWeapon() model.Weapon {
	s.nextWeapon++
	defID := s.cats.Weapons.Palette[s.rng.Intn(len(s.cats.Weapons.Palette))]
	def, _ := s.cats.Weapon(defID)
	return model.Weapon{
		ID:      fmt.Sprintf("W%05d", s.nextWeapon),
		Def:     defID,
		Quality: model.Quality(s.rng.Intn(int(model.QualityLegendary) + 1)),
		Mass:    def.Mass,
		MapID:   s.mapID,
	}
}

func (s *sim) randomPos() model.Vec3i {
	return model.Vec3i{X: s.rng.Intn(2*s.radius+1) - s.radius, Z: s.rng.Intn(2*s.radius+1) - s.radius}
}

func (s *sim) agentIDs() []string {
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *sim) looseIDs() []string {
	ids := make([]string, 0, len(s.loose))
	for id := range s.loose {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
