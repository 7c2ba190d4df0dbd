// Package forge turns seeds into accepted, persisted worlds: generate,
// validate, retry on a derived seed, then save and index.
package forge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"envforge.ai/internal/persistence/indexdb"
	plog "envforge.ai/internal/persistence/log"
	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/envs"
	"envforge.ai/internal/sim/logic/mathx"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/validate"
	"envforge.ai/internal/sim/worldgen"
)

var (
	// ErrExhausted means no seed within the attempt budget produced a valid world.
	ErrExhausted = errors.New("forge: no acceptable world within seed attempts")
	// ErrUnsound means a world validated but its reference solution did not win.
	ErrUnsound = errors.New("forge: reference solution failed")
)

type Store interface {
	Save(worldID string, st *state.State) (string, error)
}

type Index interface {
	RecordWorld(rec indexdb.WorldRecord)
}

type ReportSink interface {
	WriteReport(e plog.ReportEntry) error
}

type Config struct {
	Tuning  tuning.Tuning
	Store   Store
	Index   Index
	Reports ReportSink
	Logger  *log.Logger

	// VerifySolve replays the environment's reference solution before
	// accepting a world.
	VerifySolve bool

	// NewEnv defaults to envs.New.
	NewEnv func(name string, t tuning.Tuning) (engine.Env, error)
	Now    func() time.Time
}

type Forge struct {
	cfg    Config
	logger *log.Logger
}

func New(cfg Config) *Forge {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.NewEnv == nil {
		cfg.NewEnv = envs.New
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Forge{cfg: cfg, logger: cfg.Logger}
}

// Result describes an accepted world. Seed is the caller's seed; UsedSeed is
// the derived seed that produced the world.
type Result struct {
	Env      string          `json:"env"`
	WorldID  string          `json:"world_id"`
	Seed     int64           `json:"seed"`
	UsedSeed int64           `json:"used_seed"`
	Attempt  int             `json:"attempt"`
	Path     string          `json:"path,omitempty"`
	Report   validate.Report `json:"report"`
	State    *state.State    `json:"-"`
}

// Accept derives up to generation.seed_attempts seeds from seed and returns
// the first world that validates.
func (f *Forge) Accept(ctx context.Context, envName string, seed int64) (Result, error) {
	env, err := f.cfg.NewEnv(envName, f.cfg.Tuning)
	if err != nil {
		return Result{}, err
	}
	eng, err := engine.New(env, engine.Config{Tuning: f.cfg.Tuning, Logger: f.logger})
	if err != nil {
		return Result{}, err
	}
	gen := worldgen.New(env.Pipeline(),
		worldgen.WithRetries(f.cfg.Tuning.Generation.StepRetries),
		worldgen.WithClock(f.cfg.Now))

	attempts := f.cfg.Tuning.Generation.SeedAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		used := mathx.DeriveSeed(seed, attempt)
		worldID, st, err := gen.Generate(used)
		if err != nil {
			var gf *worldgen.GenerationFailure
			if !errors.As(err, &gf) {
				return Result{}, err
			}
			f.logger.Printf("generate env=%s seed=%d attempt=%d: %v", envName, used, attempt, err)
			last = err
			continue
		}

		rep := eng.Validator().Validate(st)
		f.report(plog.ReportEntry{WorldID: worldID, Env: envName, Seed: used, Attempt: attempt, Report: rep})
		if !rep.Valid {
			f.logger.Printf("reject env=%s seed=%d attempt=%d categories=%v", envName, used, attempt, rep.Categories())
			f.index(indexdb.WorldRecord{WorldID: worldID, Env: envName, Seed: used, Attempt: attempt, Digest: st.Digest(), Report: rep})
			last = &engine.RejectedError{Env: envName, WorldID: worldID, Seed: used, Report: rep}
			continue
		}

		if f.cfg.VerifySolve {
			if err := verify(ctx, f.cfg.Tuning, env, worldID, st); err != nil {
				return Result{}, fmt.Errorf("env %s seed %d: %w", envName, used, err)
			}
		}

		res := Result{Env: envName, WorldID: worldID, Seed: seed, UsedSeed: used, Attempt: attempt, Report: rep, State: st}
		if f.cfg.Store != nil {
			path, err := f.cfg.Store.Save(worldID, st)
			if err != nil {
				return Result{}, fmt.Errorf("forge: save %s: %w", worldID, err)
			}
			res.Path = path
		}
		f.index(indexdb.WorldRecord{WorldID: worldID, Env: envName, Seed: used, Attempt: attempt, Digest: st.Digest(), Path: res.Path, Report: rep})
		f.logger.Printf("accept env=%s seed=%d attempt=%d world=%s", envName, used, attempt, worldID)
		return res, nil
	}
	return Result{}, fmt.Errorf("%w: env %s seed %d after %d attempts: %v", ErrExhausted, envName, seed, attempts, last)
}

func (f *Forge) report(e plog.ReportEntry) {
	if f.cfg.Reports == nil {
		return
	}
	if err := f.cfg.Reports.WriteReport(e); err != nil {
		f.logger.Printf("report log: %v", err)
	}
}

func (f *Forge) index(rec indexdb.WorldRecord) {
	if f.cfg.Index != nil {
		rec.CreatedAt = f.cfg.Now()
		f.cfg.Index.RecordWorld(rec)
	}
}

type memLoader struct {
	id string
	st *state.State
}

func (l memLoader) Load(worldID string) (*state.State, error) {
	if worldID != l.id {
		return nil, fmt.Errorf("forge: unknown world %s", worldID)
	}
	return l.st.Clone(), nil
}

// verify plays the environment's reference solution on a private engine.
func verify(ctx context.Context, t tuning.Tuning, env engine.Env, worldID string, st *state.State) error {
	solver, ok := env.(envs.Solver)
	if !ok {
		return nil
	}
	traj, err := solver.Solve(st)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsound, err)
	}
	eng, err := engine.New(env, engine.Config{Tuning: t, Loader: memLoader{id: worldID, st: st}})
	if err != nil {
		return err
	}
	results, err := eng.Replay(ctx, engine.ModeLoad, engine.Ref{WorldID: worldID}, traj)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsound, err)
	}
	if len(results) == 0 || results[len(results)-1].Info.Reason != engine.ReasonSuccess {
		return fmt.Errorf("%w: %d actions did not reach success", ErrUnsound, len(traj))
	}
	return nil
}

// BatchResult splits a batch into accepted worlds and seeds that exhausted
// their attempts, both keyed by the requested seed.
type BatchResult struct {
	Accepted map[int64]Result
	Failed   map[int64]error
}

// Seeds returns the accepted seeds in ascending order.
func (b BatchResult) Seeds() []int64 {
	out := make([]int64, 0, len(b.Accepted))
	for s := range b.Accepted {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GenerateBatch runs Accept for each seed on up to workers goroutines.
// Exhausted seeds are reported in Failed; any other error aborts the batch.
func (f *Forge) GenerateBatch(ctx context.Context, envName string, seeds []int64, workers int) (BatchResult, error) {
	if workers <= 0 {
		workers = 1
	}
	out := BatchResult{Accepted: map[int64]Result{}, Failed: map[int64]error{}}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			res, err := f.Accept(ctx, envName, seed)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out.Accepted[seed] = res
			case errors.Is(err, ErrExhausted):
				out.Failed[seed] = err
			default:
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	f.logger.Printf("batch env=%s seeds=%d accepted=%d failed=%d", envName, len(seeds), len(out.Accepted), len(out.Failed))
	return out, err
}

// Seeds returns count consecutive seeds starting at start.
func Seeds(start int64, count int) []int64 {
	out := make([]int64, count)
	for i := range out {
		out[i] = start + int64(i)
	}
	return out
}
