package icemaze

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/worldgen"
)

func newEnv(t *testing.T, cfg tuning.IceMaze) *Env {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func newEngine(t *testing.T, env *Env, loader engine.Loader) *engine.Engine {
	t.Helper()
	eng, err := engine.New(env, engine.Config{Tuning: tuning.Defaults(), Loader: loader})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

type oneWorld struct{ st *state.State }

func (o oneWorld) Load(string) (*state.State, error) { return o.st.Clone(), nil }

func TestGenerate_Seed42Accepted(t *testing.T) {
	env := newEnv(t, tuning.Defaults().Envs.IceMaze)
	eng := newEngine(t, env, nil)
	st, rep, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 42})
	if err != nil {
		t.Fatalf("Reset: %v (%v)", err, rep.Issues)
	}
	if !rep.Valid || rep.Stats["shortest_path"] > 30 {
		t.Fatalf("report = %+v", rep)
	}
	start, _ := st.Pos(state.NSAgent, "pos")
	goal, _ := st.Pos("world", "goal")
	if start != (state.Pos{X: 0, Y: 0}) || goal != (state.Pos{X: 7, Y: 7}) {
		t.Fatalf("start %v goal %v", start, goal)
	}
	if rows, _ := st.Len("world", "tiles"); rows != 8 {
		t.Fatalf("rows = %d", rows)
	}
	if rep.Stats["goal_share"] < 0.8 {
		t.Fatalf("goal share = %v", rep.Stats["goal_share"])
	}
}

func TestBuild_ByteIdentical(t *testing.T) {
	env := newEnv(t, tuning.Defaults().Envs.IceMaze)
	g := worldgen.New(env.Pipeline())
	a, err := g.Build(7)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, _ := g.Build(7)
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("Build(7) not byte-identical:\n%s\n%s", ja, jb)
	}
}

func TestStep_UnknownActionLeavesState(t *testing.T) {
	env := newEnv(t, tuning.Defaults().Envs.IceMaze)
	eng := newEngine(t, env, nil)
	st, _, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 42})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	res, err := eng.Step(engine.Action{Name: "MOVE_NORTH"})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Done || res.Info.LastActionResult != engine.OutcomeInvalidAction || !res.State.Equal(st) {
		t.Fatalf("result = %+v", res.Info)
	}
}

func TestSolve_ReplayReachesGoal(t *testing.T) {
	env := newEnv(t, tuning.Defaults().Envs.IceMaze)
	eng := newEngine(t, env, nil)
	accepted := 0
	for seed := int64(1); seed <= 25; seed++ {
		st, _, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: seed})
		if err != nil {
			continue
		}
		accepted++
		traj, err := env.Solve(st)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		results, err := eng.Replay(context.Background(), engine.ModeGenerate, engine.Ref{Seed: seed}, traj)
		if err != nil {
			t.Fatalf("seed %d replay: %v", seed, err)
		}
		last := results[len(results)-1]
		if !last.Done || last.Info.Reason != engine.ReasonSuccess {
			t.Fatalf("seed %d: replay ended %+v", seed, last.Info)
		}
		max, _ := st.Int(state.NSGlobals, state.KeyMaxSteps)
		if len(results) > max {
			t.Fatalf("seed %d: %d steps over budget %d", seed, len(results), max)
		}
	}
	if accepted == 0 {
		t.Fatalf("no seed accepted")
	}
}

func TestStep_FallAndBump(t *testing.T) {
	env := newEnv(t, tuning.Defaults().Envs.IceMaze)
	st, err := worldgen.New(env.Pipeline()).Build(3)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	grid := make([][]string, 8)
	for y := range grid {
		grid[y] = []string{Ice, Ice, Ice, Ice, Ice, Ice, Ice, Ice}
	}
	grid[0][1] = Water
	st.Set("world", "tiles", grid)

	eng := newEngine(t, env, oneWorld{st})
	if _, rep, err := eng.Reset(context.Background(), engine.ModeLoad, engine.Ref{WorldID: "w"}); err != nil {
		t.Fatalf("Reset: %v (%v)", err, rep.Issues)
	}
	res, err := eng.Step(engine.Action{Name: "move", Params: map[string]any{"direction": "north"}})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Done || res.Info.LastActionResult != engine.OutcomeOK || res.Info.RemainingSteps != 29 || res.Reward != 0 {
		t.Fatalf("bump = %+v reward %v", res.Info, res.Reward)
	}
	res, err = eng.Step(engine.Action{Name: "move", Params: map[string]any{"direction": "east"}})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !res.Done || res.Info.Reason != engine.ReasonFailure {
		t.Fatalf("fall = %+v", res.Info)
	}
	if want := -0.98; res.Reward < want-1e-9 || res.Reward > want+1e-9 {
		t.Fatalf("reward = %v want %v", res.Reward, want)
	}
}

func TestGenerate_BudgetTooSmall(t *testing.T) {
	cfg := tuning.Defaults().Envs.IceMaze
	cfg.MaxSteps = 10
	env := newEnv(t, cfg)
	_, _, err := worldgen.New(env.Pipeline(), worldgen.WithRetries(3)).Generate(1)
	var gf *worldgen.GenerationFailure
	if !errors.As(err, &gf) || gf.Step != "populate_entities" || gf.Attempts != 3 {
		t.Fatalf("expected GenerationFailure from populate_entities, got %v", err)
	}
}

func TestNew_GridFromTuning(t *testing.T) {
	cfg := tuning.Defaults().Envs.IceMaze
	cfg.Width, cfg.Height = 5, 4
	env := newEnv(t, cfg)
	eng := newEngine(t, env, nil)
	st, rep, err := eng.Reset(context.Background(), engine.ModeGenerate, engine.Ref{Seed: 9})
	if err != nil {
		t.Fatalf("Reset: %v (%v)", err, rep.Issues)
	}
	grid, _ := st.StringGrid("world", "tiles")
	if len(grid) != 4 || len(grid[0]) != 5 {
		t.Fatalf("grid %dx%d", len(grid[0]), len(grid))
	}
}
