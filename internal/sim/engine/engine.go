// Package engine steps an accepted world through actions, rewards and
// termination. One Engine runs one episode at a time and is not safe for
// concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/validate"
	"envforge.ai/internal/sim/worldgen"
)

type Config struct {
	Tuning tuning.Tuning
	Loader Loader
	Sink   StepSink
	Logger *log.Logger
}

type Engine struct {
	env    Env
	cfg    Config
	gen    *worldgen.Generator
	val    *validate.Validator
	specs  map[string]ActionSpec
	logger *log.Logger

	phase   Phase
	st      *state.State
	worldID string
	episode string
	seed    int64
	steps   int
}

func New(env Env, cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	pipe := env.Pipeline()
	budget := 0
	if pipe.Template != nil {
		budget, _ = pipe.Template.Int(state.NSGlobals, state.KeyMaxSteps)
	}
	val, err := validate.New(env.Schema(), validate.Options{
		DominanceRatio: cfg.Tuning.Audit.DominanceRatio,
		ExploitRatio:   cfg.Tuning.Audit.ExploitRatio,
		StepBudget:     budget,
	})
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", env.Name(), err)
	}
	specs := map[string]ActionSpec{}
	for _, s := range env.Actions() {
		specs[s.Name] = s
	}
	return &Engine{
		env:    env,
		cfg:    cfg,
		gen:    worldgen.New(pipe, worldgen.WithRetries(cfg.Tuning.Generation.StepRetries)),
		val:    val,
		specs:  specs,
		logger: cfg.Logger,
	}, nil
}

func (e *Engine) Env() Env                       { return e.env }
func (e *Engine) Validator() *validate.Validator { return e.val }
func (e *Engine) Generator() *worldgen.Generator { return e.gen }
func (e *Engine) Phase() Phase                   { return e.phase }
func (e *Engine) WorldID() string                { return e.worldID }
func (e *Engine) Episode() string                { return e.episode }
func (e *Engine) Steps() int                     { return e.steps }

// State returns a copy of the current state, or nil before Reset.
func (e *Engine) State() *state.State {
	if e.st == nil {
		return nil
	}
	return e.st.Clone()
}

// Reset starts a new episode. In ModeGenerate the world is generated from
// ref.Seed and accepted only if it validates; in ModeLoad it is read through
// the Loader and validated the same way.
func (e *Engine) Reset(ctx context.Context, mode Mode, ref Ref) (*state.State, validate.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, validate.Report{}, err
	}
	var (
		st      *state.State
		worldID string
		err     error
	)
	switch mode {
	case ModeGenerate:
		worldID, st, err = e.gen.Generate(ref.Seed)
		if err != nil {
			return nil, validate.Report{}, err
		}
	case ModeLoad:
		if e.cfg.Loader == nil {
			return nil, validate.Report{}, ErrNoLoader
		}
		st, err = e.cfg.Loader.Load(ref.WorldID)
		if err != nil {
			return nil, validate.Report{}, fmt.Errorf("engine: load %s: %w", ref.WorldID, err)
		}
		worldID = ref.WorldID
	default:
		return nil, validate.Report{}, fmt.Errorf("engine: unknown reset mode %q", mode)
	}

	rep := e.val.Validate(st)
	if !rep.Valid {
		seed, _ := st.Int(state.NSGlobals, state.KeySeed)
		return nil, rep, &RejectedError{Env: e.env.Name(), WorldID: worldID, Seed: int64(seed), Report: rep}
	}
	e.st = st
	e.worldID = worldID
	e.episode = uuid.NewString()
	e.seed = ref.Seed
	e.steps = 0
	e.phase = PhaseReady
	e.logger.Printf("reset env=%s mode=%s world=%s episode=%s", e.env.Name(), mode, worldID, e.episode)
	return st.Clone(), rep, nil
}

// Transition applies a to a copy of st. Rejected actions return st itself
// with a non-OK outcome. The error is reserved for environment defects.
func (e *Engine) Transition(st *state.State, a Action) (*state.State, Outcome, error) {
	if out := checkAction(e.specs, a); out != OutcomeOK {
		return st, out, nil
	}
	next := st.Clone()
	if err := e.env.Apply(next, a); err != nil {
		if errors.Is(err, ErrInvalidParams) {
			return st, OutcomeInvalidParams, nil
		}
		return nil, "", fmt.Errorf("engine %s: apply %s: %w", e.env.Name(), a.Name, err)
	}
	remaining, _ := next.Int(state.NSGlobals, state.KeyRemainingSteps)
	taken, _ := next.Int(state.NSGlobals, state.KeyStepsTaken)
	if remaining > 0 {
		remaining--
	}
	next.Set(state.NSGlobals, state.KeyRemainingSteps, remaining)
	next.Set(state.NSGlobals, state.KeyStepsTaken, taken+1)
	return next, OutcomeOK, nil
}

func (e *Engine) Reward(prev *state.State, a Action, next *state.State) (float64, []string) {
	events := e.env.Events(prev, a, next)
	total, _ := e.env.Rewards().Eval(events)
	return total, events
}

// Done reports termination. A success on the last step counts as success.
func (e *Engine) Done(st *state.State) (bool, Reason) {
	switch e.env.Status(st) {
	case StatusSuccess:
		return true, ReasonSuccess
	case StatusFailure:
		return true, ReasonFailure
	}
	if remaining, ok := st.Int(state.NSGlobals, state.KeyRemainingSteps); ok && remaining <= 0 {
		return true, ReasonStepsExhausted
	}
	return false, ReasonNone
}

func (e *Engine) Step(a Action) (StepResult, error) {
	switch e.phase {
	case PhaseUninitialized:
		return StepResult{}, ErrNotReady
	case PhaseTerminal:
		return StepResult{}, ErrTerminal
	}

	prev := e.st
	next, out, err := e.Transition(prev, a)
	if err != nil {
		return StepResult{}, err
	}
	res := StepResult{Info: Info{LastActionResult: out, Events: []string{}}}
	if out != OutcomeOK {
		res.State = prev.Clone()
		res.Info.RemainingSteps, _ = prev.Int(state.NSGlobals, state.KeyRemainingSteps)
		e.emit(a, res)
		return res, nil
	}

	if issues := e.val.Structure(next, false); len(issues) > 0 {
		return StepResult{}, fmt.Errorf("%w: %s after %s: %v", ErrInvariant, e.env.Name(), a.Name, issues[0])
	}
	res.Reward, res.Info.Events = e.Reward(prev, a, next)
	if res.Info.Events == nil {
		res.Info.Events = []string{}
	}
	res.Done, res.Info.Reason = e.Done(next)
	res.Info.RemainingSteps, _ = next.Int(state.NSGlobals, state.KeyRemainingSteps)
	res.State = next.Clone()

	e.st = next
	e.steps++
	if res.Done {
		e.phase = PhaseTerminal
		e.logger.Printf("done env=%s world=%s steps=%d reason=%s", e.env.Name(), e.worldID, e.steps, res.Info.Reason)
	}
	e.emit(a, res)
	return res, nil
}

func (e *Engine) emit(a Action, res StepResult) {
	if e.cfg.Sink == nil {
		return
	}
	rec := StepRecord{
		Env:     e.env.Name(),
		WorldID: e.worldID,
		Episode: e.episode,
		Step:    e.steps,
		Action:  a,
		Outcome: res.Info.LastActionResult,
		Reward:  res.Reward,
		Events:  res.Info.Events,
		Done:    res.Done,
		Reason:  res.Info.Reason,
		Digest:  res.State.Digest(),
	}
	if err := e.cfg.Sink.WriteStep(rec); err != nil {
		e.logger.Printf("step sink: %v", err)
	}
}

// Replay resets to ref and plays traj until it ends or the episode does.
func (e *Engine) Replay(ctx context.Context, mode Mode, ref Ref, traj Trajectory) ([]StepResult, error) {
	if _, _, err := e.Reset(ctx, mode, ref); err != nil {
		return nil, err
	}
	out := make([]StepResult, 0, len(traj))
	for _, a := range traj {
		if e.phase == PhaseTerminal {
			break
		}
		res, err := e.Step(a)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
