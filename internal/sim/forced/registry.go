package forced

import (
	"sort"
	"sync"
)

// Registry records the weapons an operator has pinned to an agent. Forced
// weapons are never displaced unless forced replacement is enabled.
type Registry struct {
	mu      sync.RWMutex
	byAgent map[string]map[string]struct{}
}

func New() *Registry {
	return &Registry{byAgent: map[string]map[string]struct{}{}}
}

func (r *Registry) Set(agentID, weaponID string) {
	if agentID == "" || weaponID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byAgent[agentID]
	if set == nil {
		set = map[string]struct{}{}
		r.byAgent[agentID] = set
	}
	set[weaponID] = struct{}{}
}

func (r *Registry) IsForced(agentID, weaponID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byAgent[agentID][weaponID]
	return ok
}

func (r *Registry) Unset(agentID, weaponID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byAgent[agentID]
	if _, ok := set[weaponID]; !ok {
		return false
	}
	delete(set, weaponID)
	if len(set) == 0 {
		delete(r.byAgent, agentID)
	}
	return true
}

// Clear drops every forced weapon of the agent and returns how many there were.
func (r *Registry) Clear(agentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.byAgent[agentID])
	delete(r.byAgent, agentID)
	return n
}

// ClearWeapon removes the weapon from every agent's set. Used when a weapon is
// destroyed or unequipped.
func (r *Registry) ClearWeapon(weaponID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for agentID, set := range r.byAgent {
		if _, ok := set[weaponID]; !ok {
			continue
		}
		delete(set, weaponID)
		n++
		if len(set) == 0 {
			delete(r.byAgent, agentID)
		}
	}
	return n
}

// Forced returns the agent's forced weapon ids, sorted.
func (r *Registry) Forced(agentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byAgent[agentID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.byAgent {
		n += len(set)
	}
	return n
}
