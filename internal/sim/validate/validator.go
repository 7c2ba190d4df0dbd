package validate

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
)

type Options = RewardOptions

// Validator runs every check for one environment schema. It is safe for
// concurrent use; the compiled JSON Schema is read-only after New.
type Validator struct {
	sc       *schema.Schema
	compiled *jsonschema.Schema
	opts     Options
}

func New(sc *schema.Schema, opts Options) (*Validator, error) {
	compiled, err := sc.Compile()
	if err != nil {
		return nil, err
	}
	return &Validator{sc: sc, compiled: compiled, opts: opts.withDefaults()}, nil
}

func (v *Validator) Schema() *schema.Schema { return v.sc }
func (v *Validator) Env() string            { return v.sc.Env }

// Structure runs only the structural check. The engine uses it after every
// transition with initial=false.
func (v *Validator) Structure(st *state.State, initial bool) []Issue {
	return checkStructure(v.sc, v.compiled, st, initial)
}

// Validate runs structure, solvability and the reward audit on a freshly
// generated or loaded state.
func (v *Validator) Validate(st *state.State) Report {
	r := newReport()
	if st == nil {
		r.add(errorf(CategoryFileError, "", "no state"))
		return r
	}
	if env, _ := st.String(state.NSGlobals, state.KeyEnv); env != v.sc.Env {
		r.add(errorf(CategoryConfig, "globals."+state.KeyEnv, "state is for env %q, validator for %q", env, v.sc.Env))
	}
	r.add(v.Structure(st, true)...)

	sol := CheckSolvability(v.sc, st)
	r.add(sol.Issues...)
	r.stats(sol.Stats)

	issues, stats := CheckRewards(v.sc, st, sol, v.opts)
	r.add(issues...)
	r.stats(stats)
	return r
}
