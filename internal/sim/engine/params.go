package engine

import (
	"encoding/json"
	"math"
	"strings"
)

// IntParam reads an integer param from any of the forms JSON decoding or Go
// callers produce.
func IntParam(a Action, name string) (int, bool) {
	return asInt(a.Params[name])
}

func StringParam(a Action, name string) (string, bool) {
	s, ok := a.Params[name].(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		i, err := x.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// checkAction validates a against the vocabulary; it never looks at state.
func checkAction(specs map[string]ActionSpec, a Action) Outcome {
	spec, ok := specs[a.Name]
	if !ok {
		return OutcomeInvalidAction
	}
	for _, req := range spec.Required {
		if _, ok := a.Params[req]; !ok {
			return OutcomeMissingParams
		}
	}
	for name, v := range a.Params {
		ps, ok := spec.Params[name]
		if !ok || !ps.accepts(v) {
			return OutcomeInvalidParams
		}
	}
	return OutcomeOK
}

func (ps ParamSpec) accepts(v any) bool {
	switch ps.Type {
	case ParamInt:
		n, ok := asInt(v)
		if !ok {
			return false
		}
		if ps.Min != nil && n < *ps.Min {
			return false
		}
		if ps.Max != nil && n > *ps.Max {
			return false
		}
		return true
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return false
		}
		if len(ps.Enum) > 0 {
			found := false
			for _, e := range ps.Enum {
				if e == s {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		if ps.Charset != "" {
			for _, r := range s {
				if !strings.ContainsRune(ps.Charset, r) {
					return false
				}
			}
		}
		return true
	}
	return false
}

// IntRange is a helper for ParamSpec bounds.
func IntRange(lo, hi int) (*int, *int) { return &lo, &hi }
