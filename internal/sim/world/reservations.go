package world

import "sync"

// reservations maps a weapon to the agent whose directive targets it. Engine
// workers read it concurrently; only the runtime goroutine writes.
type reservations struct {
	mu       sync.RWMutex
	byWeapon map[string]string
}

func newReservations() *reservations {
	return &reservations{byWeapon: map[string]string{}}
}

func (r *reservations) ClaimedBy(weaponID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byWeapon[weaponID]
	return a, ok
}

func (r *reservations) claim(weaponID, agentID string) {
	r.mu.Lock()
	r.byWeapon[weaponID] = agentID
	r.mu.Unlock()
}

func (r *reservations) release(weaponID, agentID string) {
	r.mu.Lock()
	if r.byWeapon[weaponID] == agentID {
		delete(r.byWeapon, weaponID)
	}
	r.mu.Unlock()
}

func (r *reservations) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byWeapon)
}
