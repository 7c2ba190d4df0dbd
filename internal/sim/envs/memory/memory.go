// Package memory is a pair-matching board: reveal two slots per action and
// clear them when their symbols match.
package memory

import (
	_ "embed"
	"fmt"
	"sort"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/reward"
	"envforge.ai/internal/sim/rng"
	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/worldgen"
)

const Name = "memory"

const (
	StatusPlaying = "playing"
	StatusCleared = "cleared"
)

const (
	EventMatchPair  = "match_pair"
	EventClearBoard = "clear_board"
	EventRevealNew  = "reveal_new_slot"
	EventMismatch   = "mismatch"
)

//go:embed schema.yaml
var schemaYAML []byte

type Env struct {
	cfg tuning.Memory
	sc  *schema.Schema
}

func New(cfg tuning.Memory) (*Env, error) {
	if cfg.Slots < 2 || cfg.Slots%2 != 0 || len(cfg.Alphabet) < cfg.Slots/2 {
		return nil, fmt.Errorf("memory: %d slots need an even count and %d symbols", cfg.Slots, cfg.Slots/2)
	}
	sc, err := schema.Parse(schemaYAML)
	if err != nil {
		return nil, err
	}
	symbols := sc.Namespaces["board"]["symbols"]
	symbols.Len = cfg.Slots
	sc.Namespaces["board"]["symbols"] = symbols
	maxIndex := cfg.Slots - 1
	for i := range sc.Solvability.Resources {
		if sc.Solvability.Resources[i].MaxIndex != nil {
			sc.Solvability.Resources[i].MaxIndex = &maxIndex
		}
	}
	if err := sc.Check(); err != nil {
		return nil, err
	}
	return &Env{cfg: cfg, sc: sc}, nil
}

func (e *Env) Name() string             { return Name }
func (e *Env) Schema() *schema.Schema   { return e.sc }
func (e *Env) Rewards() reward.Schedule { return e.sc.Rewards }

func (e *Env) Actions() []engine.ActionSpec {
	lo, hi := engine.IntRange(0, e.cfg.Slots-1)
	slot := engine.ParamSpec{Type: engine.ParamInt, Min: lo, Max: hi}
	return []engine.ActionSpec{{
		Name:     "reveal",
		Required: []string{"first", "second"},
		Params:   map[string]engine.ParamSpec{"first": slot, "second": slot},
	}}
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
			{Name: "populate_entities", Owns: []string{"board.symbols"}, Run: e.populateEntities},
			{Name: "assign_initial_attributes", Owns: []string{"board.cleared", "board.cleared_pairs", "agent.*"}, Run: assignInitialAttributes},
		},
	}
}

// populateEntities draws Slots/2 distinct symbols, places each twice and
// shuffles the board.
func (e *Env) populateEntities(st *state.State, rs *rng.Stream) error {
	pairs := e.cfg.Slots / 2
	alphabet := []rune(e.cfg.Alphabet)
	pick := rs.Perm(len(alphabet))[:pairs]
	board := make([]string, 0, e.cfg.Slots)
	for _, i := range pick {
		s := string(alphabet[i])
		board = append(board, s, s)
	}
	rs.Shuffle(len(board), func(i, j int) { board[i], board[j] = board[j], board[i] })
	st.Set("board", "symbols", board)
	return nil
}

func assignInitialAttributes(st *state.State, rs *rng.Stream) error {
	st.Set("board", "cleared", []int{})
	st.Set("board", "cleared_pairs", 0)
	st.Set(state.NSAgent, "revealed", []int{})
	st.Set(state.NSAgent, "last_pair", []string{})
	st.Set(state.NSAgent, "status", StatusPlaying)
	return nil
}

func (e *Env) Apply(st *state.State, a engine.Action) error {
	first, _ := engine.IntParam(a, "first")
	second, _ := engine.IntParam(a, "second")
	if first == second {
		return fmt.Errorf("%w: first and second are both %d", engine.ErrInvalidParams, first)
	}
	cleared, _ := st.Ints("board", "cleared")
	if contains(cleared, first) || contains(cleared, second) {
		return fmt.Errorf("%w: slot already cleared", engine.ErrInvalidParams)
	}
	symbols, _ := st.Strings("board", "symbols")

	revealed, _ := st.Ints(state.NSAgent, "revealed")
	revealed = insertSorted(insertSorted(revealed, first), second)
	st.Set(state.NSAgent, "revealed", revealed)
	st.Set(state.NSAgent, "last_pair", []string{symbols[first], symbols[second]})

	if symbols[first] != symbols[second] {
		return nil
	}
	st.Set("board", "cleared", insertSorted(insertSorted(cleared, first), second))
	n, _ := st.Int("board", "cleared_pairs")
	n++
	st.Set("board", "cleared_pairs", n)
	if n == len(symbols)/2 {
		st.Set(state.NSAgent, "status", StatusCleared)
	}
	return nil
}

func (e *Env) Events(prev *state.State, a engine.Action, next *state.State) []string {
	var ev []string
	pr, _ := prev.Len(state.NSAgent, "revealed")
	nr, _ := next.Len(state.NSAgent, "revealed")
	if nr > pr {
		ev = append(ev, EventRevealNew)
	}
	pc, _ := prev.Int("board", "cleared_pairs")
	nc, _ := next.Int("board", "cleared_pairs")
	if nc > pc {
		ev = append(ev, EventMatchPair)
	} else {
		ev = append(ev, EventMismatch)
	}
	if e.Status(next) == engine.StatusSuccess {
		ev = append(ev, EventClearBoard)
	}
	return ev
}

func (e *Env) Status(st *state.State) engine.Status {
	if s, _ := st.String(state.NSAgent, "status"); s == StatusCleared {
		return engine.StatusSuccess
	}
	return engine.StatusPlaying
}

// Solve reveals every remaining pair directly, reading the board.
func (e *Env) Solve(st *state.State) (engine.Trajectory, error) {
	symbols, ok := st.Strings("board", "symbols")
	if !ok {
		return nil, fmt.Errorf("memory: board missing")
	}
	cleared, _ := st.Ints("board", "cleared")
	first := map[string]int{}
	var traj engine.Trajectory
	for i, s := range symbols {
		if contains(cleared, i) {
			continue
		}
		j, seen := first[s]
		if !seen {
			first[s] = i
			continue
		}
		traj = append(traj, engine.Action{Name: "reveal", Params: map[string]any{"first": j, "second": i}})
		delete(first, s)
	}
	if len(first) > 0 {
		return nil, fmt.Errorf("memory: %d symbols have no partner", len(first))
	}
	return traj, nil
}

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func insertSorted(sorted []int, v int) []int {
	i := sort.SearchInts(sorted, v)
	if i < len(sorted) && sorted[i] == v {
		return sorted
	}
	sorted = append(sorted, 0)
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = v
	return sorted
}
