package engine

import (
	"errors"
	"fmt"
	"strings"

	"envforge.ai/internal/sim/validate"
)

var (
	ErrNotReady = errors.New("engine: step before reset")
	ErrTerminal = errors.New("engine: episode is over")
	// ErrInvariant means a transition produced a state that breaks its schema.
	ErrInvariant = errors.New("engine: state invariant violated")
	// ErrInvalidParams is wrapped by Env.Apply to reject an action.
	ErrInvalidParams = errors.New("engine: invalid params")
	ErrNoLoader      = errors.New("engine: no loader configured")
)

// RejectedError carries the report of a world that failed validation.
type RejectedError struct {
	Env     string
	WorldID string
	Seed    int64
	Report  validate.Report
}

func (e *RejectedError) Error() string {
	var cats []string
	for _, c := range e.Report.Categories() {
		cats = append(cats, string(c))
	}
	return fmt.Sprintf("engine: %s world rejected (seed %d): %d errors [%s]", e.Env, e.Seed, len(e.Report.Errors()), strings.Join(cats, ","))
}
