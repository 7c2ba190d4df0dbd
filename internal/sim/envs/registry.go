// Package envs registers the reference environments by name.
package envs

import (
	"fmt"
	"sort"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/envs/cipher"
	"envforge.ai/internal/sim/envs/icemaze"
	"envforge.ai/internal/sim/envs/memory"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/validate"
)

// Solver is implemented by environments that can produce a known-good
// trajectory for an accepted state.
type Solver interface {
	Solve(st *state.State) (engine.Trajectory, error)
}

var factories = map[string]func(tuning.Tuning) (engine.Env, error){
	icemaze.Name: func(t tuning.Tuning) (engine.Env, error) { return icemaze.New(t.Envs.IceMaze) },
	memory.Name:  func(t tuning.Tuning) (engine.Env, error) { return memory.New(t.Envs.Memory) },
	cipher.Name:  func(t tuning.Tuning) (engine.Env, error) { return cipher.New(t.Envs.Cipher) },
}

func Names() []string {
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func New(name string, t tuning.Tuning) (engine.Env, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("envs: unknown env %q (have %v)", name, Names())
	}
	return f(t)
}

// Validators builds one validator per environment, configured the way the
// engine configures its own.
func Validators(t tuning.Tuning) (validate.Lookup, error) {
	byName := map[string]*validate.Validator{}
	for _, n := range Names() {
		env, err := New(n, t)
		if err != nil {
			return nil, err
		}
		eng, err := engine.New(env, engine.Config{Tuning: t})
		if err != nil {
			return nil, err
		}
		byName[n] = eng.Validator()
	}
	return func(env string) (*validate.Validator, bool) {
		v, ok := byName[env]
		return v, ok
	}, nil
}
