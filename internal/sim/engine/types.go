package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"envforge.ai/internal/sim/reward"
	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/worldgen"
)

type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseReady
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseTerminal:
		return "terminal"
	}
	return "uninitialized"
}

type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeLoad     Mode = "load"
)

// Ref selects the world for Reset: Seed for ModeGenerate, WorldID for
// ModeLoad.
type Ref struct {
	Seed    int64
	WorldID string
}

// Outcome is the result of validating an action. Anything other than
// OutcomeOK left the state untouched and consumed no step.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeInvalidAction Outcome = "invalid_action"
	OutcomeMissingParams Outcome = "missing_params"
	OutcomeInvalidParams Outcome = "invalid_params"
)

type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSuccess        Reason = "success"
	ReasonFailure        Reason = "failure"
	ReasonStepsExhausted Reason = "steps_exhausted"
)

// Status is an environment's own verdict on a state.
type Status int

const (
	StatusPlaying Status = iota
	StatusSuccess
	StatusFailure
)

type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamString ParamType = "string"
)

type ParamSpec struct {
	Type    ParamType `json:"type"`
	Min     *int      `json:"min,omitempty"`
	Max     *int      `json:"max,omitempty"`
	Enum    []string  `json:"enum,omitempty"`
	Charset string    `json:"charset,omitempty"`
}

type ActionSpec struct {
	Name     string               `json:"name"`
	Required []string             `json:"required,omitempty"`
	Params   map[string]ParamSpec `json:"params,omitempty"`
}

type Action struct {
	Name   string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Trajectory is an ordered action list; on disk it is JSONL, one action per
// line.
type Trajectory []Action

func ReadTrajectory(r io.Reader) (Trajectory, error) {
	var out Trajectory
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var a Action
		if err := dec.Decode(&a); err != nil {
			return nil, fmt.Errorf("trajectory line %d: %w", line, err)
		}
		out = append(out, a)
	}
	return out, sc.Err()
}

func (t Trajectory) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, a := range t {
		b, err := json.Marshal(a)
		if err != nil {
			return n, err
		}
		m, err := w.Write(append(b, '\n'))
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Env is one puzzle environment: its schema, generation pipeline and rules.
type Env interface {
	Name() string
	Schema() *schema.Schema
	Pipeline() worldgen.Pipeline
	Rewards() reward.Schedule
	Actions() []ActionSpec
	// Apply mutates st, a private clone, for an action whose params already
	// passed their specs. Errors wrapping ErrInvalidParams reject the action.
	Apply(st *state.State, a Action) error
	// Events names what happened between prev and next; names that match a
	// reward trigger are paid.
	Events(prev *state.State, a Action, next *state.State) []string
	Status(st *state.State) Status
}

type Info struct {
	Events           []string `json:"events"`
	LastActionResult Outcome  `json:"last_action_result"`
	Reason           Reason   `json:"reason,omitempty"`
	RemainingSteps   int      `json:"remaining_steps"`
}

type StepResult struct {
	State  *state.State `json:"state"`
	Reward float64      `json:"reward"`
	Done   bool         `json:"done"`
	Info   Info         `json:"info"`
}

// StepRecord is what the engine hands a StepSink after every step.
type StepRecord struct {
	Env     string   `json:"env"`
	WorldID string   `json:"world_id"`
	Episode string   `json:"episode"`
	Step    int      `json:"step"`
	Action  Action   `json:"action"`
	Outcome Outcome  `json:"outcome"`
	Reward  float64  `json:"reward"`
	Events  []string `json:"events,omitempty"`
	Done    bool     `json:"done"`
	Reason  Reason   `json:"reason,omitempty"`
	Digest  string   `json:"digest"`
}

type StepSink interface {
	WriteStep(rec StepRecord) error
}

type Loader interface {
	Load(worldID string) (*state.State, error)
}
