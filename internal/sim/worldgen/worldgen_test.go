package worldgen

import (
	"errors"
	"testing"
	"time"

	"envforge.ai/internal/sim/rng"
	"envforge.ai/internal/sim/state"
)

func testPipeline() Pipeline {
	tpl := state.New()
	tpl.Set(state.NSGlobals, state.KeyEnv, "toy")
	return Pipeline{
		Env:      "toy",
		Template: tpl,
		Steps: []Step{
			{
				Name: "init_from_template",
				Owns: []string{"globals.*"},
				Run: func(st *state.State, rs *rng.Stream) error {
					st.Set(state.NSGlobals, state.KeySeed, rs.Seed())
					st.Set(state.NSGlobals, state.KeyMaxSteps, 10)
					return nil
				},
			},
			{
				Name: "populate_entities",
				Owns: []string{"world.values"},
				Run: func(st *state.State, rs *rng.Stream) error {
					vals := make([]int, 8)
					for i := range vals {
						vals[i] = rs.Intn(100)
					}
					st.Set("world", "values", vals)
					return nil
				},
			},
		},
	}
}

func TestBuild_Deterministic(t *testing.T) {
	g := New(testPipeline())
	a, err := g.Build(7)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := g.Build(7)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if string(a.Canonical()) != string(b.Canonical()) {
		t.Fatalf("same seed produced different states:\n%s\n%s", a.Canonical(), b.Canonical())
	}
	c, _ := g.Build(8)
	if a.Equal(c) {
		t.Fatalf("different seeds produced identical states")
	}
}

func TestBuild_DoesNotMutateTemplate(t *testing.T) {
	p := testPipeline()
	before := string(p.Template.Canonical())
	if _, err := New(p).Build(1); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if string(p.Template.Canonical()) != before {
		t.Fatalf("template mutated")
	}
}

func TestBuild_RetriesThenFails(t *testing.T) {
	p := testPipeline()
	calls := 0
	p.Steps = append(p.Steps, Step{
		Name:    "place_agent",
		Owns:    []string{"agent.pos"},
		Retries: 3,
		Run: func(st *state.State, rs *rng.Stream) error {
			calls++
			st.SetPos(state.NSAgent, "pos", state.Pos{X: rs.Intn(4), Y: 0})
			return ErrUnsatisfied
		},
	})
	_, err := New(p).Build(3)
	var gf *GenerationFailure
	if !errors.As(err, &gf) {
		t.Fatalf("expected GenerationFailure, got %v", err)
	}
	if gf.Step != "place_agent" || gf.Attempts != 3 || gf.Seed != 3 {
		t.Fatalf("unexpected failure: %+v", gf)
	}
	if !errors.Is(err, ErrUnsatisfied) {
		t.Fatalf("failure should unwrap to ErrUnsatisfied")
	}
	if calls != 3 {
		t.Fatalf("calls = %d want 3", calls)
	}
}

func TestBuild_RetrySucceedsDeterministically(t *testing.T) {
	p := testPipeline()
	p.Steps = append(p.Steps, Step{
		Name: "place_agent",
		Owns: []string{"agent.pos"},
		Run: func(st *state.State, rs *rng.Stream) error {
			x := rs.Intn(10)
			if x < 5 {
				return ErrUnsatisfied
			}
			st.SetPos(state.NSAgent, "pos", state.Pos{X: x, Y: 0})
			return nil
		},
	})
	g := New(p, WithRetries(64))
	a, err := g.Build(11)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, _ := g.Build(11)
	if !a.Equal(b) {
		t.Fatalf("retry path not deterministic")
	}
	if pos, ok := a.Pos(state.NSAgent, "pos"); !ok || pos.X < 5 {
		t.Fatalf("postcondition not met: %v", pos)
	}
}

func TestBuild_OwnershipViolation(t *testing.T) {
	p := testPipeline()
	p.Steps = append(p.Steps, Step{
		Name: "place_agent",
		Owns: []string{"agent.pos"},
		Run: func(st *state.State, rs *rng.Stream) error {
			st.Set(state.NSGlobals, state.KeyMaxSteps, 99)
			return nil
		},
	})
	_, err := New(p).Build(1)
	if !errors.Is(err, ErrOwnership) {
		t.Fatalf("expected ErrOwnership, got %v", err)
	}
}

func TestGenerate_WorldIDIndependentOfPayload(t *testing.T) {
	tick := time.Unix(1700000000, 0)
	g := New(testPipeline(), WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	id1, s1, err := g.Generate(7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id2, s2, _ := g.Generate(7)
	if id1 == id2 {
		t.Fatalf("expected distinct world ids, got %s twice", id1)
	}
	if string(s1.Canonical()) != string(s2.Canonical()) {
		t.Fatalf("payloads differ for same seed")
	}
	if NewWorldID("toy", 7, tick) != NewWorldID("toy", 7, tick) {
		t.Fatalf("world id not stable for identical input")
	}
}
