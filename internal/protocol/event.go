package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"autoequip.ai/internal/sim/world/kernel/model"
)

//go:embed event.schema.json
var eventSchemaJSON string

var eventSchema = func() *jsonschema.Schema {
	s, err := jsonschema.CompileString("event.schema.json", eventSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("compile event.schema.json: %v", err))
	}
	return s
}()

// Event is one world-simulation notification. Which fields are set depends on
// Type; the schema enforces the required ones.
type Event struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version,omitempty"`
	Tick            uint64         `json:"tick,omitempty"`
	WeaponID        string         `json:"weapon_id,omitempty"`
	AgentID         string         `json:"agent_id,omitempty"`
	MapID           string         `json:"map_id,omitempty"`
	Pos             *model.Vec3i   `json:"pos,omitempty"`
	Quality         *model.Quality `json:"quality,omitempty"`
	Forced          *bool          `json:"forced,omitempty"`
	OK              *bool          `json:"ok,omitempty"`
	Weapon          *model.Weapon  `json:"weapon,omitempty"`
	Agent           *model.Agent   `json:"agent,omitempty"`
}

// DecodeEvent validates raw against the event schema and decodes it.
func DecodeEvent(raw []byte) (Event, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Event{}, Errorf(ErrProtoBadRequest, "invalid json: %v", err)
	}
	if err := eventSchema.Validate(doc); err != nil {
		return Event{}, Errorf(ErrBadRequest, "%v", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, Errorf(ErrBadRequest, "%v", err)
	}
	if ev.ProtocolVersion != "" && ev.ProtocolVersion != Version {
		return Event{}, Errorf(ErrProtoVersion, "unsupported protocol_version %q", ev.ProtocolVersion)
	}
	return ev, nil
}

// Ref names the object an event is about, for logs and ERROR replies.
func (e Event) Ref() string {
	switch {
	case e.Weapon != nil:
		return e.Weapon.ID
	case e.Agent != nil:
		return e.Agent.ID
	case e.WeaponID != "":
		return e.WeaponID
	case e.AgentID != "":
		return e.AgentID
	case e.MapID != "":
		return e.MapID
	}
	return ""
}

func Bool(v bool) *bool { return &v }
