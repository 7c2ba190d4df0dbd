// Package cipher is a decoding puzzle: recover the plaintext word from its
// ciphertext. Probing a shift shows what the ciphertext decodes to under it.
package cipher

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/logic/codec"
	"envforge.ai/internal/sim/reward"
	"envforge.ai/internal/sim/rng"
	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/worldgen"
)

const Name = "cipher"

const (
	StatusPlaying = "playing"
	StatusSolved  = "solved"
)

const (
	EventSolve       = "solve"
	EventProbeNew    = "probe_new_shift"
	EventWrongAnswer = "wrong_answer"
)

var (
	//go:embed schema.yaml
	schemaYAML []byte
	//go:embed words.txt
	wordsTxt string
)

var words = strings.Fields(wordsTxt)

type Env struct {
	cfg tuning.Cipher
	c   codec.Codec
	sc  *schema.Schema
}

func New(cfg tuning.Cipher) (*Env, error) {
	c, ok := codec.Lookup(cfg.Codec)
	if !ok {
		return nil, fmt.Errorf("cipher: unknown codec %q", cfg.Codec)
	}
	sc, err := schema.Parse(schemaYAML)
	if err != nil {
		return nil, err
	}
	return &Env{cfg: cfg, c: c, sc: sc}, nil
}

func (e *Env) Name() string             { return Name }
func (e *Env) Schema() *schema.Schema   { return e.sc }
func (e *Env) Rewards() reward.Schedule { return e.sc.Rewards }

func (e *Env) Actions() []engine.ActionSpec {
	lo, hi := engine.IntRange(1, 25)
	return []engine.ActionSpec{
		{
			Name:     "submit",
			Required: []string{"answer"},
			Params:   map[string]engine.ParamSpec{"answer": {Type: engine.ParamString, Charset: codec.Alphabet}},
		},
		{
			Name:     "probe",
			Required: []string{"shift"},
			Params:   map[string]engine.ParamSpec{"shift": {Type: engine.ParamInt, Min: lo, Max: hi}},
		},
	}
}

func (e *Env) Pipeline() worldgen.Pipeline {
	tpl := state.New()
	tpl.Set(state.NSGlobals, state.KeyEnv, Name)
	tpl.Set(state.NSGlobals, state.KeyMaxSteps, e.cfg.MaxSteps)
	tpl.Set(state.NSGlobals, state.KeyRemainingSteps, e.cfg.MaxSteps)
	tpl.Set(state.NSGlobals, state.KeyStepsTaken, 0)
	return worldgen.Pipeline{
		Env:      Name,
		Template: tpl,
		Steps: []worldgen.Step{
			{Name: "init_from_template", Owns: []string{"globals.seed"}, Run: func(st *state.State, rs *rng.Stream) error {
				st.Set(state.NSGlobals, state.KeySeed, rs.Seed())
				return nil
			}},
			{Name: "place_structures", Owns: []string{"puzzle.codec", "puzzle.shift"}, Run: e.placeStructures},
			{Name: "populate_entities", Owns: []string{"puzzle.plaintext"}, Run: e.populateEntities},
			{Name: "assign_initial_attributes", Owns: []string{"puzzle.ciphertext", "agent.*"}, Run: e.assignInitialAttributes},
		},
	}
}

func (e *Env) placeStructures(st *state.State, rs *rng.Stream) error {
	st.Set("puzzle", "codec", e.c.Name())
	st.Set("puzzle", "shift", rs.IntRange(1, 25))
	return nil
}

// populateEntities draws a word; one outside the configured length range is
// redrawn.
func (e *Env) populateEntities(st *state.State, rs *rng.Stream) error {
	w := words[rs.Intn(len(words))]
	if len(w) < e.cfg.MinLen || len(w) > e.cfg.MaxLen {
		return fmt.Errorf("%w: %q has length %d", worldgen.ErrUnsatisfied, w, len(w))
	}
	st.Set("puzzle", "plaintext", w)
	return nil
}

func (e *Env) assignInitialAttributes(st *state.State, rs *rng.Stream) error {
	plain, _ := st.String("puzzle", "plaintext")
	shift, _ := st.Int("puzzle", "shift")
	enc, err := e.c.Encode(plain, shift)
	if err != nil {
		return err
	}
	if enc == plain {
		return fmt.Errorf("%w: %s leaves %q unchanged", worldgen.ErrUnsatisfied, e.c.Name(), plain)
	}
	st.Set("puzzle", "ciphertext", enc)
	st.Set(state.NSAgent, "status", StatusPlaying)
	st.Set(state.NSAgent, "attempts", 0)
	st.Set(state.NSAgent, "last_guess", "")
	st.Set(state.NSAgent, "probes", []int{})
	st.Set(state.NSAgent, "last_probe", "")
	return nil
}

func (e *Env) Apply(st *state.State, a engine.Action) error {
	switch a.Name {
	case "submit":
		answer, _ := engine.StringParam(a, "answer")
		if answer == "" {
			return fmt.Errorf("%w: empty answer", engine.ErrInvalidParams)
		}
		n, _ := st.Int(state.NSAgent, "attempts")
		st.Set(state.NSAgent, "attempts", n+1)
		st.Set(state.NSAgent, "last_guess", answer)
		if plain, _ := st.String("puzzle", "plaintext"); answer == plain {
			st.Set(state.NSAgent, "status", StatusSolved)
		}
	case "probe":
		shift, _ := engine.IntParam(a, "shift")
		cipher, _ := st.String("puzzle", "ciphertext")
		out, err := e.c.Decode(cipher, shift)
		if err != nil {
			return fmt.Errorf("%w: %v", engine.ErrInvalidParams, err)
		}
		st.Set(state.NSAgent, "last_probe", out)
		probes, _ := st.Ints(state.NSAgent, "probes")
		i := sort.SearchInts(probes, shift)
		if i == len(probes) || probes[i] != shift {
			probes = append(probes, 0)
			copy(probes[i+1:], probes[i:])
			probes[i] = shift
			st.Set(state.NSAgent, "probes", probes)
		}
	}
	return nil
}

func (e *Env) Events(prev *state.State, a engine.Action, next *state.State) []string {
	var ev []string
	pp, _ := prev.Len(state.NSAgent, "probes")
	np, _ := next.Len(state.NSAgent, "probes")
	if np > pp {
		ev = append(ev, EventProbeNew)
	}
	if a.Name == "submit" {
		if e.Status(next) == engine.StatusSuccess {
			ev = append(ev, EventSolve)
		} else {
			ev = append(ev, EventWrongAnswer)
		}
	}
	return ev
}

func (e *Env) Status(st *state.State) engine.Status {
	if s, _ := st.String(state.NSAgent, "status"); s == StatusSolved {
		return engine.StatusSuccess
	}
	return engine.StatusPlaying
}

// Solve decodes the ciphertext with the puzzle's own key and submits it.
func (e *Env) Solve(st *state.State) (engine.Trajectory, error) {
	cipher, _ := st.String("puzzle", "ciphertext")
	shift, _ := st.Int("puzzle", "shift")
	plain, err := e.c.Decode(cipher, shift)
	if err != nil {
		return nil, err
	}
	return engine.Trajectory{{Name: "submit", Params: map[string]any{"answer": plain}}}, nil
}
