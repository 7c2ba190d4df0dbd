// Package worldgen runs an environment's ordered generation pipeline over a
// template state. Every step draws only from the rng.Stream it is handed, so a
// seed fully determines the produced State.
package worldgen

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"envforge.ai/internal/sim/rng"
	"envforge.ai/internal/sim/state"
)

var (
	// ErrUnsatisfied is returned by a step whose postcondition did not hold
	// with the values drawn; the step is retried.
	ErrUnsatisfied = errors.New("worldgen: postcondition not satisfied")
	// ErrOwnership means a step wrote a field it does not own.
	ErrOwnership = errors.New("worldgen: step wrote a field it does not own")
)

const DefaultRetries = 8

type StepFunc func(st *state.State, rs *rng.Stream) error

type Step struct {
	Name string
	// Owns lists the fields the step may add or overwrite: "ns.key" or "ns.*".
	Owns []string
	// Retries bounds re-runs after ErrUnsatisfied; 0 uses the generator default.
	Retries int
	Run     StepFunc
}

func (s Step) owns(path string) bool {
	ns, _, _ := strings.Cut(path, ".")
	for _, o := range s.Owns {
		if o == path || o == ns+".*" {
			return true
		}
	}
	return false
}

type Pipeline struct {
	Env      string
	Template *state.State
	Steps    []Step
}

// GenerationFailure reports that a step could not be satisfied for this seed.
// Callers retry with another seed.
type GenerationFailure struct {
	Env      string
	Seed     int64
	Step     string
	Attempts int
	Err      error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("worldgen %s: seed %d: step %s failed after %d attempts: %v", e.Env, e.Seed, e.Step, e.Attempts, e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

type Generator struct {
	pipe    Pipeline
	retries int
	now     func() time.Time
}

type Option func(*Generator)

func WithRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.retries = n
		}
	}
}

// WithClock overrides the clock used only for WorldId derivation.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func New(p Pipeline, opts ...Option) *Generator {
	g := &Generator{pipe: p, retries: DefaultRetries, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Generator) Env() string { return g.pipe.Env }

// Generate builds the state for seed and assigns it a fresh WorldId.
func (g *Generator) Generate(seed int64) (string, *state.State, error) {
	st, err := g.Build(seed)
	if err != nil {
		return "", nil, err
	}
	return NewWorldID(g.pipe.Env, seed, g.now()), st, nil
}

// Build runs the pipeline. The template is never modified.
func (g *Generator) Build(seed int64) (*state.State, error) {
	st := state.New()
	if g.pipe.Template != nil {
		st = g.pipe.Template.Clone()
	}
	rs := rng.New(seed)
	for _, step := range g.pipe.Steps {
		next, err := g.runStep(step, st, rs, seed)
		if err != nil {
			return nil, err
		}
		st = next
	}
	return st, nil
}

func (g *Generator) runStep(step Step, st *state.State, rs *rng.Stream, seed int64) (*state.State, error) {
	retries := step.Retries
	if retries <= 0 {
		retries = g.retries
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		scratch := st.Clone()
		err := step.Run(scratch, rs)
		if err == nil {
			if bad := foreignWrites(step, st, scratch); len(bad) > 0 {
				return nil, fmt.Errorf("%w: %s wrote %s", ErrOwnership, step.Name, strings.Join(bad, ", "))
			}
			return scratch, nil
		}
		if !errors.Is(err, ErrUnsatisfied) {
			return nil, &GenerationFailure{Env: g.pipe.Env, Seed: seed, Step: step.Name, Attempts: attempt, Err: err}
		}
		lastErr = err
	}
	return nil, &GenerationFailure{Env: g.pipe.Env, Seed: seed, Step: step.Name, Attempts: retries, Err: lastErr}
}

func foreignWrites(step Step, before, after *state.State) []string {
	var bad []string
	for _, p := range state.ChangedPaths(before, after) {
		if !step.owns(p) {
			bad = append(bad, p)
		}
	}
	return bad
}

var worldNamespace = uuid.MustParse("6f1c2a52-3d0e-4b8e-9a55-7e1d6c0f4b21")

// NewWorldID derives the persistence key from env, seed and generation time.
// Two worlds generated from the same seed at different times get different ids.
func NewWorldID(env string, seed int64, at time.Time) string {
	name := fmt.Sprintf("%s:%d:%d", env, seed, at.UTC().UnixNano())
	return uuid.NewSHA1(worldNamespace, []byte(name)).String()
}
