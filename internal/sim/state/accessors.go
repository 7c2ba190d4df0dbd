package state

import "math"

func (s *State) Int(ns, key string) (int, bool) {
	return asInt(s.ns[ns][key])
}

func (s *State) Float(ns, key string) (float64, bool) {
	switch x := s.ns[ns][key].(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func (s *State) String(ns, key string) (string, bool) {
	v, ok := s.ns[ns][key].(string)
	return v, ok
}

func (s *State) Bool(ns, key string) (bool, bool) {
	v, ok := s.ns[ns][key].(bool)
	return v, ok
}

// List returns a deep copy of a list value.
func (s *State) List(ns, key string) ([]any, bool) {
	v, ok := s.ns[ns][key].([]any)
	if !ok {
		return nil, false
	}
	return cloneValue(v).([]any), true
}

// Len is the length of a list value (rows for a grid).
func (s *State) Len(ns, key string) (int, bool) {
	v, ok := s.ns[ns][key].([]any)
	return len(v), ok
}

func (s *State) Strings(ns, key string) ([]string, bool) {
	return asStrings(s.ns[ns][key])
}

func (s *State) Ints(ns, key string) ([]int, bool) {
	return asInts(s.ns[ns][key])
}

// StringGrid reads a list of rows of strings. Rows may differ in length; the
// structural validator is what enforces rectangular shape.
func (s *State) StringGrid(ns, key string) ([][]string, bool) {
	rows, ok := s.ns[ns][key].([]any)
	if !ok {
		return nil, false
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		row, ok := asStrings(r)
		if !ok {
			return nil, false
		}
		out[i] = row
	}
	return out, true
}

func (s *State) Pos(ns, key string) (Pos, bool) {
	xs, ok := asInts(s.ns[ns][key])
	if !ok || len(xs) != 2 {
		return Pos{}, false
	}
	return Pos{X: xs[0], Y: xs[1]}, true
}

// Value helpers shared with the validator, which reads fields by path.

func AsInt(v any) (int, bool)          { return asInt(v) }
func AsStrings(v any) ([]string, bool) { return asStrings(v) }
func AsInts(v any) ([]int, bool)       { return asInts(v) }

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), true
		}
	}
	return 0, false
}

func asStrings(v any) ([]string, bool) {
	xs, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, len(xs))
	for i, e := range xs {
		str, ok := e.(string)
		if !ok {
			return nil, false
		}
		out[i] = str
	}
	return out, true
}

func asInts(v any) ([]int, bool) {
	xs, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, len(xs))
	for i, e := range xs {
		n, ok := asInt(e)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
