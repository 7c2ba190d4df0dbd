package protocol

import (
	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/validate"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Env             string `json:"env"`
	AgentName       string `json:"agent_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	SessionID       string              `json:"session_id"`
	Env             string              `json:"env"`
	Actions         []engine.ActionSpec `json:"actions"`
	TuningDigest    string              `json:"tuning_digest,omitempty"`
}

// RESET (client -> server). Mode is "generate" (uses Seed) or "load" (uses WorldID).
type ResetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Mode            string `json:"mode"`
	Seed            int64  `json:"seed,omitempty"`
	WorldID         string `json:"world_id,omitempty"`
}

// STEP (client -> server)
type StepMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Action          string         `json:"action"`
	Params          map[string]any `json:"params,omitempty"`
}

// STATE (server -> client), sent after RESET and every STEP.
type StateMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	WorldID         string           `json:"world_id"`
	Episode         string           `json:"episode"`
	Step            int              `json:"step"`
	State           *state.State     `json:"state"`
	Reward          float64          `json:"reward"`
	Done            bool             `json:"done"`
	Info            engine.Info      `json:"info"`
	Report          *validate.Report `json:"report,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Code            string           `json:"code"`
	Message         string           `json:"message"`
	Report          *validate.Report `json:"report,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
