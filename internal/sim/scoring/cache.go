package scoring

import (
	"sync"
	"sync/atomic"

	"autoequip.ai/internal/sim/world/kernel/model"
)

type key struct {
	agent  string
	weapon string
}

type entry struct {
	score float64
	fp    uint64
	tick  uint64
}

type Stats struct {
	Entries       int    `json:"entries"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
	Generation    uint64 `json:"generation"`
}

// Cache memoizes scores per (agent, weapon). An entry is only served while
// its fingerprint matches the current agent/weapon state and weight
// generation; otherwise it is recomputed in place. There is no expiry.
type Cache struct {
	mu       sync.RWMutex
	scorer   *Scorer
	gen      uint64
	entries  map[key]entry
	byAgent  map[string]map[string]struct{}
	byWeapon map[string]map[string]struct{}

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
}

func NewCache(s *Scorer) *Cache {
	return &Cache{
		scorer:   s,
		entries:  map[key]entry{},
		byAgent:  map[string]map[string]struct{}{},
		byWeapon: map[string]map[string]struct{}{},
	}
}

// GetCachedScore returns the memoized score for (a, w), recomputing when the
// stored fingerprint is stale or missing.
func (c *Cache) GetCachedScore(a model.Agent, w model.Weapon, tick uint64) float64 {
	return c.getWithAgentFP(a, AgentFingerprint(a), w, tick)
}

// Session precomputes the agent fingerprint once for a batch of lookups.
type Session struct {
	c    *Cache
	a    model.Agent
	afp  uint64
	tick uint64
}

func (c *Cache) For(a model.Agent, tick uint64) Session {
	return Session{c: c, a: a, afp: AgentFingerprint(a), tick: tick}
}

func (s Session) Score(w model.Weapon) float64 {
	return s.c.getWithAgentFP(s.a, s.afp, w, s.tick)
}

func (c *Cache) getWithAgentFP(a model.Agent, afp uint64, w model.Weapon, tick uint64) float64 {
	k := key{agent: a.ID, weapon: w.ID}

	c.mu.RLock()
	gen := c.gen
	fp := combine(afp, WeaponFingerprint(w), gen)
	e, ok := c.entries[k]
	scorer := c.scorer
	c.mu.RUnlock()
	if ok && e.fp == fp {
		c.hits.Add(1)
		return e.score
	}
	c.misses.Add(1)

	score := scorer.Score(a, w)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// Weights changed while we computed; do not store under the new generation.
		return score
	}
	c.entries[k] = entry{score: score, fp: fp, tick: tick}
	index(c.byAgent, a.ID, w.ID)
	index(c.byWeapon, w.ID, a.ID)
	return score
}

// Lookup returns the stored entry without recomputing.
func (c *Cache) Lookup(agentID, weaponID string) (score float64, tick uint64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key{agent: agentID, weapon: weaponID}]
	return e.score, e.tick, ok
}

func (c *Cache) InvalidateAgent(agentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.byAgent[agentID]
	for wid := range ws {
		delete(c.entries, key{agent: agentID, weapon: wid})
		unindex(c.byWeapon, wid, agentID)
	}
	delete(c.byAgent, agentID)
	c.invalidations.Add(uint64(len(ws)))
	return len(ws)
}

func (c *Cache) InvalidateWeapon(weaponID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	as := c.byWeapon[weaponID]
	for aid := range as {
		delete(c.entries, key{agent: aid, weapon: weaponID})
		unindex(c.byAgent, aid, weaponID)
	}
	delete(c.byWeapon, weaponID)
	c.invalidations.Add(uint64(len(as)))
	return len(as)
}

// SetScorer swaps the scorer (weights reload) and drops every entry.
func (c *Cache) SetScorer(s *Scorer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scorer = s
	c.gen++
	c.invalidations.Add(uint64(len(c.entries)))
	c.entries = map[key]entry{}
	c.byAgent = map[string]map[string]struct{}{}
	c.byWeapon = map[string]map[string]struct{}{}
}

func (c *Cache) Scorer() *Scorer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scorer
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:       len(c.entries),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		Generation:    c.gen,
	}
}

// Better is the anti-flap rule: a candidate only wins when it clears the
// held item by strictly more than threshold. The margin is compared on the
// score grid so float noise cannot turn an exact tie into a win.
func Better(candidate, held, threshold float64) bool {
	return quantize(candidate-held) > quantize(threshold)
}

func index(m map[string]map[string]struct{}, a, b string) {
	s := m[a]
	if s == nil {
		s = map[string]struct{}{}
		m[a] = s
	}
	s[b] = struct{}{}
}

func unindex(m map[string]map[string]struct{}, a, b string) {
	s := m[a]
	if s == nil {
		return
	}
	delete(s, b)
	if len(s) == 0 {
		delete(m, a)
	}
}
