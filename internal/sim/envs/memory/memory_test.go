package memory

import (
	"context"
	"strings"
	"testing"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/validate"
	"envforge.ai/internal/sim/worldgen"
)

func setup(t *testing.T, loader engine.Loader) (*Env, *engine.Engine) {
	t.Helper()
	env, err := New(tuning.Defaults().Envs.Memory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng, err := engine.New(env, engine.Config{Tuning: tuning.Defaults(), Loader: loader})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return env, eng
}

func reveal(a, b int) engine.Action {
	return engine.Action{Name: "reveal", Params: map[string]any{"first": a, "second": b}}
}

func TestGenerate_BoardHasPairs(t *testing.T) {
	_, eng := setup(t, nil)
	st, rep, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 11})
	if err != nil {
		t.Fatalf("Reset: %v (%v)", err, rep.Issues)
	}
	symbols, _ := st.Strings("board", "symbols")
	if len(symbols) != 16 {
		t.Fatalf("board size %d", len(symbols))
	}
	for sym, n := range validate.Cardinality(symbols) {
		if n != 2 {
			t.Fatalf("%s appears %d times", sym, n)
		}
	}
	if rep.Stats["min_actions"] != 8 || rep.Stats["goal_share"] < 0.8 {
		t.Fatalf("stats = %v", rep.Stats)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	env, _ := setup(t, nil)
	g := worldgen.New(env.Pipeline())
	a, _ := g.Build(7)
	b, _ := g.Build(7)
	c, _ := g.Build(8)
	if a.Digest() != b.Digest() {
		t.Fatalf("same seed, different boards")
	}
	if a.Digest() == c.Digest() {
		t.Fatalf("different seeds, same board")
	}
}

func TestValidate_TripledSymbol(t *testing.T) {
	env, eng := setup(t, nil)
	st, err := worldgen.New(env.Pipeline()).Build(5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	symbols, _ := st.Strings("board", "symbols")
	victim := symbols[0]
	for i, s := range symbols {
		if s != victim {
			symbols[i] = victim
			break
		}
	}
	st.Set("board", "symbols", symbols)

	rep := eng.Validator().Validate(st)
	if rep.Valid {
		t.Fatalf("tripled symbol accepted")
	}
	found := false
	for _, is := range rep.Issues {
		if is.Category == validate.CategorySolvability && strings.Contains(is.Message, `"`+victim+`"`) && strings.Contains(is.Message, "3 times") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no SOLVABILITY issue for %s: %v", victim, rep.Issues)
	}
}

func TestStep_InvalidReveals(t *testing.T) {
	env, eng := setup(t, nil)
	st, _, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 3})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	traj, _ := env.Solve(st)
	if _, err := eng.Step(traj[0]); err != nil {
		t.Fatalf("Step: %v", err)
	}
	p0, _ := engine.IntParam(traj[0], "first")
	cases := map[string]engine.Action{
		"same slot":    reveal(4, 4),
		"out of range": reveal(0, 16),
		"cleared":      reveal(p0, (p0+1)%16),
	}
	for name, a := range cases {
		before := eng.State()
		res, err := eng.Step(a)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Info.LastActionResult != engine.OutcomeInvalidParams || !res.State.Equal(before) {
			t.Fatalf("%s: %+v", name, res.Info)
		}
	}
	res, _ := eng.Step(engine.Action{Name: "reveal", Params: map[string]any{"first": 1}})
	if res.Info.LastActionResult != engine.OutcomeMissingParams {
		t.Fatalf("missing: %+v", res.Info)
	}
}

func TestSolve_ReplayClearsBoard(t *testing.T) {
	env, eng := setup(t, nil)
	for seed := int64(1); seed <= 10; seed++ {
		st, _, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: seed})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		traj, err := env.Solve(st)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		results, err := eng.Replay(context.Background(), engine.ModeGenerate, engine.Ref{Seed: seed}, traj)
		if err != nil {
			t.Fatalf("seed %d replay: %v", seed, err)
		}
		if len(results) != 8 {
			t.Fatalf("seed %d: %d steps", seed, len(results))
		}
		last := results[len(results)-1]
		if !last.Done || last.Info.Reason != engine.ReasonSuccess {
			t.Fatalf("seed %d: %+v", seed, last.Info)
		}
		total := 0.0
		for _, r := range results {
			total += r.Reward
		}
		// 8 pairs, the clear bonus and 8 steps that each reveal new slots.
		if want := 8 + 2 + 0.08; total < want-1e-9 || total > want+1e-9 {
			t.Fatalf("seed %d: total %v want %v", seed, total, want)
		}
		cleared, _ := last.State.Int("board", "cleared_pairs")
		if cleared != 8 {
			t.Fatalf("cleared = %d", cleared)
		}
	}
}

func TestStep_MismatchRecordsLastPair(t *testing.T) {
	_, eng := setup(t, nil)
	st, _, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 21})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	symbols, _ := st.Strings("board", "symbols")
	j := 1
	for symbols[j] == symbols[0] {
		j++
	}
	res, err := eng.Step(reveal(0, j))
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	pair, _ := res.State.Strings(state.NSAgent, "last_pair")
	if len(pair) != 2 || pair[0] != symbols[0] || pair[1] != symbols[j] {
		t.Fatalf("last_pair = %v", pair)
	}
	if res.Reward != 0.01 || res.Done {
		t.Fatalf("reward %v done %v", res.Reward, res.Done)
	}
}
