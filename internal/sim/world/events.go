package world

import (
	"go.uber.org/zap"

	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/scoring"
	"autoequip.ai/internal/sim/world/kernel/model"
)

// Apply folds one event into the mirror. TICK events run a Step and return
// the directives it issued.
func (r *Runtime) Apply(ev protocol.Event) ([]model.Directive, error) {
	out, err := r.apply(ev)
	if err != nil {
		r.eventsFailed.Add(1)
		return nil, err
	}
	r.eventsOK.Add(1)
	if r.sinks.Events != nil {
		if werr := r.sinks.Events.WriteEvent(ev); werr != nil {
			r.log.Warn("event log write failed", zap.Error(werr))
		}
	}
	return out, nil
}

func (r *Runtime) apply(ev protocol.Event) ([]model.Directive, error) {
	switch ev.Type {
	case protocol.TypeWeaponSpawn:
		if ev.Weapon == nil || ev.Weapon.ID == "" {
			return nil, protocol.Errorf(protocol.ErrBadRequest, "WEAPON_SPAWN without weapon")
		}
		r.avail.Register(*ev.Weapon)
		r.scores.InvalidateWeapon(ev.Weapon.ID)

	case protocol.TypeWeaponMove:
		if ev.Pos == nil {
			return nil, protocol.Errorf(protocol.ErrBadRequest, "WEAPON_MOVE without pos")
		}
		if !r.avail.Move(ev.WeaponID, ev.MapID, *ev.Pos) {
			return nil, protocol.Errorf(protocol.ErrUnknownWeapon, "weapon %s is not lying around", ev.WeaponID)
		}

	case protocol.TypeWeaponQuality:
		if ev.Quality == nil {
			return nil, protocol.Errorf(protocol.ErrBadRequest, "WEAPON_QUALITY without quality")
		}
		r.scores.InvalidateWeapon(ev.WeaponID)
		if !r.avail.SetQuality(ev.WeaponID, *ev.Quality) {
			return nil, protocol.Errorf(protocol.ErrUnknownWeapon, "weapon %s is not lying around", ev.WeaponID)
		}

	case protocol.TypeWeaponDespawn:
		r.avail.Unregister(ev.WeaponID)
		r.forgetWeapon(ev.WeaponID)

	case protocol.TypeWeaponPickup:
		r.avail.Unregister(ev.WeaponID)
		// The picker's own scores go with its next AGENT_UPDATE; the other
		// agents' pairings with this weapon are dead now.
		r.scores.InvalidateWeapon(ev.WeaponID)
		r.releaseWeapon(ev.WeaponID)

	case protocol.TypeAgentSpawn, protocol.TypeAgentUpdate:
		if ev.Agent == nil || ev.Agent.ID == "" {
			return nil, protocol.Errorf(protocol.ErrBadRequest, "%s without agent", ev.Type)
		}
		r.upsertAgent(ev.Agent.Clone())

	case protocol.TypeAgentDespawn:
		if _, ok := r.agents[ev.AgentID]; !ok {
			return nil, protocol.Errorf(protocol.ErrUnknownAgent, "agent %s", ev.AgentID)
		}
		r.dropAgent(ev.AgentID)

	case protocol.TypeMapUnload:
		if ev.MapID == "" {
			return nil, protocol.Errorf(protocol.ErrBadRequest, "MAP_UNLOAD without map_id")
		}
		r.unloadMap(ev.MapID)

	case protocol.TypeForce:
		if _, ok := r.agents[ev.AgentID]; !ok {
			return nil, protocol.Errorf(protocol.ErrUnknownAgent, "agent %s", ev.AgentID)
		}
		if ev.Forced == nil {
			return nil, protocol.Errorf(protocol.ErrBadRequest, "FORCE without forced flag")
		}
		if *ev.Forced {
			r.forced.Set(ev.AgentID, ev.WeaponID)
		} else {
			r.forced.Unset(ev.AgentID, ev.WeaponID)
		}

	case protocol.TypeTick:
		if r.stepped.Load() && ev.Tick <= r.tick.Load() {
			return nil, protocol.Errorf(protocol.ErrStale, "tick %d is not after %d", ev.Tick, r.tick.Load())
		}
		return r.Step(ev.Tick), nil

	case protocol.TypeDirectiveDone:
		p, ok := r.pending[ev.AgentID]
		if !ok {
			// Already released by the pickup, a despawn or the timeout.
			return nil, nil
		}
		if p.WeaponID != ev.WeaponID {
			return nil, protocol.Errorf(protocol.ErrStale, "pending directive for %s is %s, not %s", ev.AgentID, p.WeaponID, ev.WeaponID)
		}
		r.release(ev.AgentID)
		if ev.OK != nil && !*ev.OK {
			r.log.Info("directive failed", zap.String("agent", ev.AgentID), zap.String("weapon", ev.WeaponID))
		}

	default:
		return nil, protocol.Errorf(protocol.ErrBadRequest, "unknown event type %q", ev.Type)
	}
	return nil, nil
}

func (r *Runtime) upsertAgent(a model.Agent) {
	if prev := r.agents[a.ID]; prev != nil {
		if scoring.AgentFingerprint(*prev) != scoring.AgentFingerprint(a) {
			r.scores.InvalidateAgent(a.ID)
		}
		for _, id := range prev.HeldIDs() {
			if !a.Holds(id) {
				r.forced.ClearWeapon(id)
			}
		}
	}
	// Anything carried is no longer a pickup candidate, whether or not the
	// simulation sent WEAPON_PICKUP first.
	for _, id := range a.HeldIDs() {
		if r.avail.Unregister(id) {
			r.releaseWeapon(id)
		}
	}
	if p, ok := r.pending[a.ID]; ok && a.Holds(p.WeaponID) {
		r.release(a.ID)
	}
	r.agents[a.ID] = &a
	r.nAgents.Store(int64(len(r.agents)))
}

func (r *Runtime) forgetWeapon(id string) {
	r.scores.InvalidateWeapon(id)
	r.forced.ClearWeapon(id)
	r.releaseWeapon(id)
}

func (r *Runtime) dropAgent(id string) {
	delete(r.agents, id)
	r.nAgents.Store(int64(len(r.agents)))
	r.forced.Clear(id)
	r.scores.InvalidateAgent(id)
	r.release(id)
}

// unloadMap forgets everything on mapID: its loose weapons and the agents
// standing on it, with their reservations.
func (r *Runtime) unloadMap(mapID string) {
	weapons := r.avail.DropMap(mapID)
	for _, id := range weapons {
		r.forgetWeapon(id)
	}
	var agents []string
	for id, a := range r.agents {
		if a.MapID == mapID {
			agents = append(agents, id)
		}
	}
	for _, id := range agents {
		r.dropAgent(id)
	}
	r.log.Info("map unloaded", zap.String("map", mapID), zap.Int("weapons", len(weapons)), zap.Int("agents", len(agents)))
}

// release drops the agent's pending directive and the reservation with it.
func (r *Runtime) release(agentID string) {
	p, ok := r.pending[agentID]
	if !ok {
		return
	}
	r.res.release(p.WeaponID, agentID)
	delete(r.pending, agentID)
	r.nPending.Store(int64(len(r.pending)))
}

func (r *Runtime) releaseWeapon(weaponID string) {
	if agentID, ok := r.res.ClaimedBy(weaponID); ok {
		r.release(agentID)
	}
}

// Agent returns a copy of the mirrored agent. Not safe to call concurrently
// with Run.
func (r *Runtime) Agent(id string) (model.Agent, bool) {
	a := r.agents[id]
	if a == nil {
		return model.Agent{}, false
	}
	return a.Clone(), true
}

func (r *Runtime) Pending(agentID string) (model.Directive, bool) {
	p, ok := r.pending[agentID]
	return p.Directive, ok
}
