package validate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"envforge.ai/internal/persistence/levelfile"
	"envforge.ai/internal/sim/state"
)

// Lookup returns the validator for an environment name.
type Lookup func(env string) (*Validator, bool)

// ValidateLevelFile reads path and validates it with the validator its
// globals.env names. Read and parse failures are a single FILE_ERROR issue.
func ValidateLevelFile(path string, lookup Lookup) Report {
	lv, err := levelfile.Read(path)
	if err != nil {
		return FileError(path, err)
	}
	env, ok := lv.State.String(state.NSGlobals, state.KeyEnv)
	if !ok || env == "" {
		return FileError(path, fmt.Errorf("globals.%s missing", state.KeyEnv))
	}
	v, ok := lookup(env)
	if !ok {
		return FileError(path, fmt.Errorf("unknown env %q", env))
	}
	return v.Validate(lv.State)
}

// BatchValidate validates every level file in dir with up to workers files in
// flight. Reports are keyed by world id.
func BatchValidate(ctx context.Context, dir string, lookup Lookup, workers int) (map[string]Report, error) {
	paths, err := levelfile.Dir{Root: dir}.List()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	out := make(map[string]Report, len(paths))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := ValidateLevelFile(p, lookup)
			mu.Lock()
			out[levelfile.WorldID(p)] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
