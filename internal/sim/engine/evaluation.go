package engine

import "autoequip.ai/internal/sim/world/kernel/model"

// Reasons an evaluation ends without a directive.
const (
	ReasonNoCandidates   = "NO_CANDIDATES"
	ReasonNoImprovement  = "NO_IMPROVEMENT"
	ReasonPrimaryForced  = "PRIMARY_FORCED"
	ReasonSidearmsForced = "SIDEARMS_FORCED"
	ReasonSlotsDisabled  = "SLOTS_DISABLED"
	ReasonSlotsFull      = "SLOTS_FULL"
	ReasonTargetVanished = "TARGET_VANISHED"
	ReasonAgentInactive  = "AGENT_INACTIVE"
)

const (
	CodeReserved          = "RESERVED"
	NoteExtensionRejected = "EXTENSION_REJECTED"
)

type Candidate struct {
	Weapon   model.Weapon `json:"weapon"`
	Score    float64      `json:"score"`
	Distance float64      `json:"distance"`
}

type Rejected struct {
	WeaponID string `json:"weapon_id"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
	Sidearm  bool   `json:"sidearm,omitempty"`
}

type Held struct {
	WeaponID string     `json:"weapon_id"`
	Slot     model.Slot `json:"slot"`
	Index    int        `json:"index"`
	Score    float64    `json:"score"`
	Forced   bool       `json:"forced,omitempty"`
}

// Evaluation summarises one decision: what was seen, what was rejected and
// why, and the directive or the reason there is none.
type Evaluation struct {
	AgentID       string           `json:"agent_id"`
	MapID         string           `json:"map_id"`
	Tick          uint64           `json:"tick"`
	Candidates    []Candidate      `json:"candidates,omitempty"`
	Rejected      []Rejected       `json:"rejected,omitempty"`
	Held          []Held           `json:"held,omitempty"`
	Directive     *model.Directive `json:"directive,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	SidearmReason string           `json:"sidearm_reason,omitempty"`
	Notes         []string         `json:"notes,omitempty"`
}

func (ev Evaluation) HasDirective() bool { return ev.Directive != nil }
