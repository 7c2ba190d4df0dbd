package envs

import (
	"context"
	"testing"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/tuning"
)

func TestRegistry_AllEnvsGenerateAndSolve(t *testing.T) {
	tu := tuning.Defaults()
	for _, name := range Names() {
		env, err := New(name, tu)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		eng, err := engine.New(env, engine.Config{Tuning: tu})
		if err != nil {
			t.Fatalf("%s: engine: %v", name, err)
		}
		st, rep, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 100})
		if err != nil {
			t.Fatalf("%s: Reset: %v", name, err)
		}
		if !rep.Valid || rep.Stats["goal_share"] < tu.Audit.DominanceRatio {
			t.Fatalf("%s: report %+v", name, rep)
		}
		solver, ok := env.(Solver)
		if !ok {
			t.Fatalf("%s does not implement Solver", name)
		}
		traj, err := solver.Solve(st)
		if err != nil {
			t.Fatalf("%s: Solve: %v", name, err)
		}
		res, err := eng.Replay(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 100}, traj)
		if err != nil || len(res) == 0 || res[len(res)-1].Info.Reason != engine.ReasonSuccess {
			t.Fatalf("%s: replay %v", name, err)
		}
	}
}

func TestRegistry_UnknownAndLookup(t *testing.T) {
	if _, err := New("sokoban", tuning.Defaults()); err == nil {
		t.Fatalf("expected error for unknown env")
	}
	lookup, err := Validators(tuning.Defaults())
	if err != nil {
		t.Fatalf("Validators: %v", err)
	}
	for _, n := range Names() {
		if v, ok := lookup(n); !ok || v.Env() != n {
			t.Fatalf("lookup %s failed", n)
		}
	}
	if _, ok := lookup("sokoban"); ok {
		t.Fatalf("lookup accepted unknown env")
	}
}
