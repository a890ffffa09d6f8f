package world

import (
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/engine"
	"autoequip.ai/internal/sim/world/kernel/model"
	"autoequip.ai/internal/sim/world/logic/mathx"
)

// Step evaluates the agents due at tick and commits their directives in
// ascending agent id order. The first directive for a weapon reserves it;
// a later agent that picked the same weapon is evaluated again with the
// reservation visible.
func (r *Runtime) Step(tick uint64) []model.Directive {
	start := time.Now()
	r.tick.Store(tick)
	r.stepped.Store(true)
	r.expire(tick)

	due := r.dueAgents(tick)
	if len(due) == 0 {
		return nil
	}
	evs := r.evaluate(due, tick)

	var out []model.Directive
	for i, ev := range evs {
		if d := ev.Directive; d != nil {
			if owner, taken := r.res.ClaimedBy(d.WeaponID); taken && owner != d.AgentID {
				r.reevaluated.Add(1)
				ev = r.eng.Evaluate(due[i], tick)
			}
		}
		r.record(ev)
		if ev.Directive != nil {
			r.commit(*ev.Directive, tick)
			out = append(out, *ev.Directive)
		}
	}
	r.log.Debug("step",
		zap.Uint64("tick", tick),
		zap.Int("evaluated", len(due)),
		zap.Int("directives", len(out)),
		zap.Duration("took", time.Since(start)))
	return out
}

func (r *Runtime) dueAgents(tick uint64) []model.Agent {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		if _, busy := r.pending[id]; busy {
			continue
		}
		if !mathx.Due(tick, id, r.cfg.EvalIntervalTicks) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.Agent, len(ids))
	for i, id := range ids {
		out[i] = r.agents[id].Clone()
	}
	return out
}

func (r *Runtime) evaluate(agents []model.Agent, tick uint64) []engine.Evaluation {
	evs := make([]engine.Evaluation, len(agents))
	if r.cfg.Workers <= 1 || len(agents) < 2 {
		for i := range agents {
			evs[i] = r.eng.Evaluate(agents[i], tick)
		}
		return evs
	}
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i := range agents {
		g.Go(func() error {
			evs[i] = r.eng.Evaluate(agents[i], tick)
			return nil
		})
	}
	_ = g.Wait()
	return evs
}

func (r *Runtime) record(ev engine.Evaluation) {
	r.evaluations.Add(1)
	if r.sinks.Trace != nil && (ev.Directive != nil || r.cfg.TraceAll) {
		if err := r.sinks.Trace.WriteEvaluation(ev); err != nil {
			r.log.Warn("trace write failed", zap.Error(err))
		}
	}
	if r.sinks.Index != nil {
		r.sinks.Index.RecordEvaluation(ev)
	}
	if ev.Directive == nil && ev.Reason == engine.ReasonTargetVanished {
		r.log.Debug("target vanished before emit", zap.String("agent", ev.AgentID))
	}
}

func (r *Runtime) commit(d model.Directive, tick uint64) {
	r.res.claim(d.WeaponID, d.AgentID)
	r.pending[d.AgentID] = pendingDirective{Directive: d, issued: tick}
	r.nPending.Store(int64(len(r.pending)))
	r.directives.Add(1)
	r.log.Info("directive",
		zap.String("agent", d.AgentID),
		zap.String("weapon", d.WeaponID),
		zap.String("slot", string(d.Slot)),
		zap.Int("slot_index", d.SlotIndex),
		zap.String("displaced", d.DisplacedID),
		zap.Float64("score", d.Score),
		zap.Float64("displaced_score", d.DisplacedScore))
	r.broadcast(protocol.NewDirectiveMsg(d))
}

// expire drops directives the executor never confirmed.
func (r *Runtime) expire(tick uint64) {
	for agentID, p := range r.pending {
		if tick < p.issued+r.cfg.DirectiveTimeoutTicks {
			continue
		}
		r.expired.Add(1)
		r.log.Info("directive timed out", zap.String("agent", agentID), zap.String("weapon", p.WeaponID), zap.Uint64("issued", p.issued))
		r.release(agentID)
	}
}

func (r *Runtime) broadcast(v any) {
	if len(r.subs) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		r.log.Error("encode outbound", zap.Error(err))
		return
	}
	for _, out := range r.subs {
		r.send(out, b)
	}
}

func (r *Runtime) send(out chan []byte, b []byte) {
	select {
	case out <- b:
	default:
		r.droppedOut.Add(1)
	}
}
