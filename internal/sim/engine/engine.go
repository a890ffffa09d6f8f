package engine

import (
	"sort"

	"autoequip.ai/internal/sim/availability"
	"autoequip.ai/internal/sim/capability"
	"autoequip.ai/internal/sim/eligibility"
	"autoequip.ai/internal/sim/forced"
	"autoequip.ai/internal/sim/scoring"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world/kernel/model"
)

type Config struct {
	MinImprovement         float64
	Radius                 float64
	AllowSlotReplacement   bool
	AllowForcedReplacement bool
	SecondaryUpgrades      bool
	DeferToExtension       bool
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		MinImprovement:         t.Engine.MinImprovement,
		Radius:                 t.Engine.Radius,
		AllowSlotReplacement:   t.Engine.AllowSlotReplacement,
		AllowForcedReplacement: t.Engine.AllowForcedReplacement,
		SecondaryUpgrades:      t.Engine.SecondaryUpgrades,
		DeferToExtension:       t.Engine.DeferToExtension,
	}
}

// Claims reports weapons already promised to an agent by an earlier directive.
// Claimed weapons are hidden from every other agent.
type Claims interface {
	ClaimedBy(weaponID string) (agentID string, ok bool)
}

type Deps struct {
	Availability *availability.Cache
	Scores       *scoring.Cache
	Validator    *eligibility.Validator
	Forced       *forced.Registry
	Providers    capability.Providers
	Claims       Claims
}

// Engine decides, for one agent at a time, whether a nearby weapon should
// replace something it carries. Every call starts from scratch; the engine
// keeps no per-agent state between evaluations.
type Engine struct {
	cfg       Config
	avail     *availability.Cache
	scores    *scoring.Cache
	validator *eligibility.Validator
	forced    *forced.Registry
	providers capability.Providers
	claims    Claims
}

func New(cfg Config, d Deps) *Engine {
	f := d.Forced
	if f == nil {
		f = forced.New()
	}
	return &Engine{
		cfg:       cfg,
		avail:     d.Availability,
		scores:    d.Scores,
		validator: d.Validator,
		forced:    f,
		providers: d.Providers.OrNone(),
		claims:    d.Claims,
	}
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Evaluate(a model.Agent, tick uint64) Evaluation {
	ev := Evaluation{AgentID: a.ID, MapID: a.MapID, Tick: tick}
	if a.Drafted || a.Downed {
		ev.Reason = ReasonAgentInactive
		return ev
	}

	sess := e.scores.For(a, tick)
	ev.Held = e.heldScores(a, sess)

	// Primary candidates are checked as swaps for the held primary; the
	// sidearm step re-checks the pool against its own displaced slot.
	var pool []pooled
	for _, w := range e.avail.QueryNear(a.MapID, a.Pos, e.cfg.Radius) {
		if a.Holds(w.ID) {
			continue
		}
		if e.claims != nil {
			if owner, ok := e.claims.ClaimedBy(w.ID); ok && owner != a.ID {
				ev.Rejected = append(ev.Rejected, Rejected{WeaponID: w.ID, Code: CodeReserved, Detail: "reserved by " + owner})
				continue
			}
		}
		r, bad := e.validator.CheckReplacing(a, w, a.Primary)
		pool = append(pool, pooled{w: w, code: r.Code})
		if bad {
			ev.Rejected = append(ev.Rejected, Rejected{WeaponID: w.ID, Code: r.Code, Detail: r.Detail})
			continue
		}
		ev.Candidates = append(ev.Candidates, candidate(a, sess, w))
	}
	if len(ev.Candidates) == 0 && !weightOnly(pool) {
		ev.Reason = ReasonNoCandidates
		return ev
	}
	rank(ev.Candidates)

	d, primaryReason := e.primary(a, tick, &ev)
	if d == nil {
		d, ev.SidearmReason = e.sidearm(a, tick, sess, pool, &ev)
	}
	if d == nil {
		ev.Reason = pickReason(primaryReason, ev.SidearmReason)
		return ev
	}
	if !e.avail.Exists(d.WeaponID) {
		ev.Reason = ReasonTargetVanished
		return ev
	}
	ev.Directive = d
	return ev
}

// pooled is a nearby weapon with the code it was rejected with as a primary,
// empty when it passed.
type pooled struct {
	w    model.Weapon
	code string
}

// weightOnly reports whether some pooled weapon failed the primary check on
// carry weight alone, which a different swap may still allow.
func weightOnly(pool []pooled) bool {
	for _, p := range pool {
		if p.code == eligibility.CodeTooHeavy {
			return true
		}
	}
	return false
}

func candidate(a model.Agent, sess scoring.Session, w model.Weapon) Candidate {
	return Candidate{Weapon: w, Score: sess.Score(w), Distance: model.DistXZ(a.Pos, w.Pos)}
}

func (e *Engine) heldScores(a model.Agent, sess scoring.Session) []Held {
	var out []Held
	if a.Primary != nil {
		out = append(out, Held{
			WeaponID: a.Primary.ID,
			Slot:     model.SlotPrimary,
			Score:    sess.Score(*a.Primary),
			Forced:   e.forced.IsForced(a.ID, a.Primary.ID),
		})
	}
	if e.providers.Sidearms.IsPresent() {
		for i, s := range a.Sidearms {
			out = append(out, Held{
				WeaponID: s.ID,
				Slot:     model.SlotSidearm,
				Index:    i,
				Score:    sess.Score(s),
				Forced:   e.forced.IsForced(a.ID, s.ID),
			})
		}
	}
	return out
}

func (e *Engine) primary(a model.Agent, tick uint64, ev *Evaluation) (*model.Directive, string) {
	if len(ev.Candidates) == 0 {
		return nil, ReasonNoCandidates
	}
	best := ev.Candidates[0]
	if a.Primary == nil {
		if best.Score <= 0 {
			return nil, ReasonNoImprovement
		}
		return directive(a, tick, model.SlotPrimary, 0, best, nil), ""
	}
	held := ev.Held[0]
	if !scoring.Better(best.Score, held.Score, e.cfg.MinImprovement) {
		return nil, ReasonNoImprovement
	}
	if held.Forced && !e.cfg.AllowForcedReplacement {
		return nil, ReasonPrimaryForced
	}
	return directive(a, tick, model.SlotPrimary, 0, best, &held), ""
}

func (e *Engine) sidearm(a model.Agent, tick uint64, sess scoring.Session, pool []pooled, ev *Evaluation) (*model.Directive, string) {
	sa := e.providers.Sidearms
	if !sa.IsPresent() || !e.cfg.SecondaryUpgrades {
		return nil, ReasonSlotsDisabled
	}
	limit, count := sa.MaxSlots(a), sa.CurrentSlotCount(a)

	if e.cfg.DeferToExtension {
		if d, ok := sa.TryBuildUpgradeDirective(a); ok {
			if vd, ok := e.acceptExtension(a, tick, sess, d, limit, count, ev); ok {
				return vd, ""
			}
			ev.Notes = append(ev.Notes, NoteExtensionRejected)
		}
	}

	var (
		displaced *Held
		dropped   *model.Weapon
	)
	if count >= limit {
		if limit <= 0 || !e.cfg.AllowSlotReplacement {
			return nil, ReasonSlotsFull
		}
		worst, ok := e.worstSidearm(ev.Held)
		if !ok {
			return nil, ReasonSidearmsForced
		}
		displaced, dropped = &worst, &a.Sidearms[worst.Index]
	}

	var cands []Candidate
	for _, p := range pool {
		// Anything but weight already failed for good as a primary.
		if p.code != "" && p.code != eligibility.CodeTooHeavy {
			continue
		}
		if r, bad := e.validator.CheckSidearmReplacing(a, p.w, dropped); bad {
			ev.Rejected = append(ev.Rejected, Rejected{WeaponID: p.w.ID, Code: r.Code, Detail: r.Detail, Sidearm: true})
			continue
		}
		cands = append(cands, candidate(a, sess, p.w))
	}
	if len(cands) == 0 {
		return nil, ReasonNoCandidates
	}
	rank(cands)
	best := cands[0]

	if displaced == nil {
		if best.Score <= 0 {
			return nil, ReasonNoImprovement
		}
		return directive(a, tick, model.SlotSidearm, count, best, nil), ""
	}
	if !scoring.Better(best.Score, displaced.Score, e.cfg.MinImprovement) {
		return nil, ReasonNoImprovement
	}
	return directive(a, tick, model.SlotSidearm, displaced.Index, best, displaced), ""
}

// worstSidearm is the lowest scoring replaceable sidearm; ties go to the lower
// slot index.
func (e *Engine) worstSidearm(held []Held) (Held, bool) {
	var (
		worst Held
		found bool
	)
	for _, h := range held {
		if h.Slot != model.SlotSidearm {
			continue
		}
		if h.Forced && !e.cfg.AllowForcedReplacement {
			continue
		}
		if !found || h.Score < worst.Score {
			worst, found = h, true
		}
	}
	return worst, found
}

// acceptExtension re-checks a directive proposed by the sidearm extension
// against the same rules the engine applies to its own choices.
func (e *Engine) acceptExtension(a model.Agent, tick uint64, sess scoring.Session, d model.Directive, limit, count int, ev *Evaluation) (*model.Directive, bool) {
	w, ok := e.avail.Get(d.WeaponID)
	if !ok || w.MapID != a.MapID || a.Holds(w.ID) {
		return nil, false
	}
	if e.claims != nil {
		if owner, ok := e.claims.ClaimedBy(w.ID); ok && owner != a.ID {
			return nil, false
		}
	}
	c := candidate(a, sess, w)
	if d.DisplacedID == "" {
		if count >= limit {
			return nil, false
		}
		if _, bad := e.validator.CheckSidearm(a, w); bad {
			return nil, false
		}
		return directive(a, tick, model.SlotSidearm, count, c, nil), true
	}
	for _, h := range ev.Held {
		if h.Slot != model.SlotSidearm || h.WeaponID != d.DisplacedID {
			continue
		}
		if h.Forced && !e.cfg.AllowForcedReplacement {
			return nil, false
		}
		if _, bad := e.validator.CheckSidearmReplacing(a, w, &a.Sidearms[h.Index]); bad {
			return nil, false
		}
		return directive(a, tick, model.SlotSidearm, h.Index, c, &h), true
	}
	return nil, false
}

func directive(a model.Agent, tick uint64, slot model.Slot, idx int, c Candidate, displaced *Held) *model.Directive {
	d := &model.Directive{
		AgentID:   a.ID,
		WeaponID:  c.Weapon.ID,
		MapID:     c.Weapon.MapID,
		Slot:      slot,
		SlotIndex: idx,
		Score:     c.Score,
		Tick:      tick,
	}
	if displaced != nil {
		d.DisplacedID = displaced.WeaponID
		d.DisplacedScore = displaced.Score
	}
	return d
}

// rank orders candidates best first: score, then distance, then spawn tick,
// then id.
func rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Weapon.SpawnTick != b.Weapon.SpawnTick {
			return a.Weapon.SpawnTick < b.Weapon.SpawnTick
		}
		return a.Weapon.ID < b.Weapon.ID
	})
}

func pickReason(primary, sidearm string) string {
	if primary == ReasonPrimaryForced {
		return primary
	}
	switch sidearm {
	case ReasonSlotsFull, ReasonSidearmsForced:
		return sidearm
	}
	if primary != "" {
		return primary
	}
	return ReasonNoImprovement
}
