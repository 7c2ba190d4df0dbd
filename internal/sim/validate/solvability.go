package validate

import (
	"fmt"

	"envforge.ai/internal/sim/logic/codec"
	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
)

// Solvability is what the analyzer proved about a state. MinActions is the
// fewest valid actions an optimal agent needs; the reward audit uses it.
type Solvability struct {
	Issues     []Issue
	Budget     int
	MinActions int
	// Trivial is set when the start state already satisfies the goal.
	Trivial bool
	Stats   map[string]float64
}

// CheckSolvability decides whether st can be completed within its step
// budget using the pattern declared by sc. It is pure; generation time and
// level-file validation give the same answer for the same state.
func CheckSolvability(sc *schema.Schema, st *state.State) Solvability {
	sv := sc.Solvability
	out := Solvability{Stats: map[string]float64{}}
	budget, ok := intAt(st, sv.Budget)
	if !ok {
		out.Issues = append(out.Issues, errorf(CategoryStepBudget, sv.Budget, "step budget missing or not an integer"))
		return out
	}
	out.Budget = budget
	out.Stats["budget"] = float64(budget)

	switch sv.Kind {
	case schema.KindReachability:
		checkReachability(sv, st, &out)
	case schema.KindMatching:
		checkMatching(sv, st, &out)
	case schema.KindEncoding:
		checkEncoding(sv, st, &out)
	default:
		out.Issues = append(out.Issues, errorf(CategoryConfig, "", "unknown solvability kind %q", sv.Kind))
	}
	out.Issues = append(out.Issues, checkResources(sv.Resources, st)...)
	out.Stats["min_actions"] = float64(out.MinActions)
	return out
}

func checkReachability(sv schema.Solvability, st *state.State, out *Solvability) {
	grid, ok := gridAt(st, sv.Grid)
	if !ok {
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Grid, "grid missing or malformed"))
		return
	}
	start, ok1 := posAt(st, sv.Start)
	goal, ok2 := posAt(st, sv.Goal)
	if !ok1 || !ok2 {
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Start, "start or goal position missing"))
		return
	}
	passable := map[string]bool{}
	for _, p := range sv.Passable {
		passable[p] = true
	}
	path := ShortestPath(grid, func(c string) bool { return passable[c] }, start, goal)
	if path == nil {
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Goal, "goal (%d,%d) unreachable from (%d,%d)", goal.X, goal.Y, start.X, start.Y))
		return
	}
	moves := len(path) - 1
	out.MinActions = moves
	out.Trivial = moves == 0
	out.Stats["shortest_path"] = float64(moves)
	switch {
	case moves > out.Budget:
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Budget, "shortest path %d exceeds step budget %d", moves, out.Budget))
	case moves == out.Budget:
		out.Issues = append(out.Issues, warnf(CategoryStepBudget, sv.Budget, "shortest path uses the whole step budget (%d)", moves))
	}
}

func checkMatching(sv schema.Solvability, st *state.State, out *Solvability) {
	ns, key, _ := schema.SplitPath(sv.Slots)
	raw, ok := st.Get(ns, key)
	if !ok {
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Slots, "slots missing"))
		return
	}
	vals, ok := Flatten(raw)
	if !ok {
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Slots, "slots is not a list"))
		return
	}
	g := sv.GroupSize
	counts := Cardinality(vals)
	for _, sym := range sortedKeys(counts) {
		if n := counts[sym]; n != g {
			out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Slots, "symbol %q appears %d times; matching needs exactly %d", sym, n, g))
		}
	}
	groups := len(vals) / g
	cleared := 0
	if sv.Cleared != "" {
		cleared, _ = intAt(st, sv.Cleared)
	}
	left := groups - cleared
	if left < 0 {
		left = 0
	}
	out.MinActions = left
	out.Trivial = left == 0
	out.Stats["groups"] = float64(groups)
	if left > out.Budget {
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Budget, "%d groups need at least %d actions, budget is %d", left, left, out.Budget))
		return
	}
	// Pairs only: reveal each unseen slot once, then every match is known.
	if g == 2 && left > 0 {
		guaranteed := 2*left - 1
		out.Stats["guaranteed_actions"] = float64(guaranteed)
		if guaranteed > out.Budget {
			out.Issues = append(out.Issues, warnf(CategoryStepBudget, sv.Budget, "a perfect-memory agent may need %d actions, budget is %d", guaranteed, out.Budget))
		}
	}
}

func checkEncoding(sv schema.Solvability, st *state.State, out *Solvability) {
	name, _ := stringAt(st, sv.Codec)
	c, ok := codec.Lookup(name)
	if !ok {
		out.Issues = append(out.Issues, errorf(CategoryEncoding, sv.Codec, "unknown codec %q", name))
		return
	}
	encoded, ok1 := stringAt(st, sv.Encoded)
	target, ok2 := stringAt(st, sv.Target)
	key, ok3 := intAt(st, sv.Key)
	if !ok1 || !ok2 || !ok3 {
		out.Issues = append(out.Issues, errorf(CategoryEncoding, sv.Encoded, "encoded text, key or target missing"))
		return
	}
	if err := CheckEquivalence(c, encoded, key, target); err != nil {
		out.Issues = append(out.Issues, errorf(CategoryEncoding, sv.Encoded, "%v", err))
		return
	}
	out.MinActions = 1
	out.Trivial = encoded == target
	if out.Budget < 1 {
		out.Issues = append(out.Issues, errorf(CategorySolvability, sv.Budget, "step budget %d leaves no room to answer", out.Budget))
	}
}

func checkResources(rs []schema.Resource, st *state.State) []Issue {
	var issues []Issue
	for _, r := range rs {
		ns, key, _ := schema.SplitPath(r.Path)
		v, ok := st.Get(ns, key)
		if !ok {
			issues = append(issues, errorf(CategoryResource, r.Path, "resource missing"))
			continue
		}
		if r.Charset != "" {
			vals, ok := Flatten(v)
			if !ok {
				vals = []string{fmt.Sprint(v)}
			}
			for _, s := range vals {
				if !codec.InAlphabet(s, r.Charset) {
					issues = append(issues, errorf(CategoryResource, r.Path, "%q has characters outside the action alphabet", s))
					break
				}
			}
		}
		if r.MaxIndex != nil {
			n := 0
			if xs, ok := v.([]any); ok {
				n = len(xs) - 1
			} else if i, ok := state.AsInt(v); ok {
				n = i
			}
			if n > *r.MaxIndex {
				issues = append(issues, errorf(CategoryResource, r.Path, "index %d exceeds action range 0..%d", n, *r.MaxIndex))
			}
		}
	}
	return issues
}

func intAt(st *state.State, path string) (int, bool) {
	ns, key, ok := schema.SplitPath(path)
	if !ok {
		return 0, false
	}
	return st.Int(ns, key)
}

func stringAt(st *state.State, path string) (string, bool) {
	ns, key, ok := schema.SplitPath(path)
	if !ok {
		return "", false
	}
	return st.String(ns, key)
}

func posAt(st *state.State, path string) (state.Pos, bool) {
	ns, key, ok := schema.SplitPath(path)
	if !ok {
		return state.Pos{}, false
	}
	return st.Pos(ns, key)
}

func gridAt(st *state.State, path string) ([][]string, bool) {
	ns, key, ok := schema.SplitPath(path)
	if !ok {
		return nil, false
	}
	return st.StringGrid(ns, key)
}
