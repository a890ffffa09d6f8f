package protocol

import "autoequip.ai/internal/sim/world/kernel/model"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Tuning          TuningSummary  `json:"tuning"`
}

type CatalogDigests struct {
	Weapons      DigestRef `json:"weapons"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type TuningSummary struct {
	MinImprovement    float64 `json:"min_improvement"`
	Radius            float64 `json:"radius"`
	EvalIntervalTicks int     `json:"eval_interval_ticks"`
	SidearmsEnabled   bool    `json:"sidearms_enabled"`
	AmmoEnabled       bool    `json:"ammo_enabled"`
}

// DIRECTIVE (server -> client)
type DirectiveMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Directive       model.Directive `json:"directive"`
}

func NewDirectiveMsg(d model.Directive) DirectiveMsg {
	return DirectiveMsg{Type: TypeDirective, ProtocolVersion: Version, Directive: d}
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	Ref             string `json:"ref,omitempty"`
}

func NewErrorMsg(err error, ref string) ErrorMsg {
	msg := ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: CodeOf(err), Ref: ref}
	if pe, ok := err.(*Error); ok {
		msg.Message = pe.Message
	} else if err != nil {
		msg.Message = err.Error()
	}
	return msg
}
