package world

import "autoequip.ai/internal/sim/scoring"

type Stats struct {
	Tick            uint64        `json:"tick"`
	Agents          int64         `json:"agents"`
	Weapons         int           `json:"weapons"`
	Maps            int           `json:"maps"`
	Pending         int64         `json:"pending"`
	Reserved        int           `json:"reserved"`
	Forced          int           `json:"forced"`
	Evaluations     uint64        `json:"evaluations"`
	Directives      uint64        `json:"directives"`
	Expired         uint64        `json:"expired"`
	Reevaluated     uint64        `json:"reevaluated"`
	DroppedOutbound uint64        `json:"dropped_outbound"`
	EventsOK        uint64        `json:"events_ok"`
	EventsFailed    uint64        `json:"events_failed"`
	Scores          scoring.Stats `json:"scores"`
}

// Stats is safe to call from any goroutine.
func (r *Runtime) Stats() Stats {
	return Stats{
		Tick:            r.tick.Load(),
		Agents:          r.nAgents.Load(),
		Weapons:         r.avail.Len(),
		Maps:            len(r.avail.Maps()),
		Pending:         r.nPending.Load(),
		Reserved:        r.res.len(),
		Forced:          r.forced.Len(),
		Evaluations:     r.evaluations.Load(),
		Directives:      r.directives.Load(),
		Expired:         r.expired.Load(),
		Reevaluated:     r.reevaluated.Load(),
		DroppedOutbound: r.droppedOut.Load(),
		EventsOK:        r.eventsOK.Load(),
		EventsFailed:    r.eventsFailed.Load(),
		Scores:          r.scores.Stats(),
	}
}
