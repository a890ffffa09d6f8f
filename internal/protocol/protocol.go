package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello     = "HELLO"
	TypeWelcome   = "WELCOME"
	TypeDirective = "DIRECTIVE"
	TypeError     = "ERROR"
)

// World events (client -> server).
const (
	TypeWeaponSpawn   = "WEAPON_SPAWN"
	TypeWeaponMove    = "WEAPON_MOVE"
	TypeWeaponQuality = "WEAPON_QUALITY"
	TypeWeaponDespawn = "WEAPON_DESPAWN"
	TypeWeaponPickup  = "WEAPON_PICKUP"
	TypeAgentSpawn    = "AGENT_SPAWN"
	TypeAgentUpdate   = "AGENT_UPDATE"
	TypeAgentDespawn  = "AGENT_DESPAWN"
	TypeForce         = "FORCE"
	TypeTick          = "TICK"
	TypeDirectiveDone = "DIRECTIVE_DONE"
	TypeMapUnload     = "MAP_UNLOAD"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
