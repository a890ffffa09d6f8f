package model

type Slot string

const (
	SlotPrimary Slot = "PRIMARY"
	SlotSidearm Slot = "SIDEARM"
)

// Directive is a single upgrade action for the job executor. It is built
// fresh for each evaluation and never persisted by the engine.
type Directive struct {
	AgentID        string  `json:"agent_id"`
	WeaponID       string  `json:"weapon_id"`
	MapID          string  `json:"map_id"`
	Slot           Slot    `json:"slot"`
	SlotIndex      int     `json:"slot_index"`
	DisplacedID    string  `json:"displaced_id,omitempty"`
	Score          float64 `json:"score"`
	DisplacedScore float64 `json:"displaced_score,omitempty"`
	Tick           uint64  `json:"tick"`
}

func (d Directive) Displaces() bool { return d.DisplacedID != "" }
