// Package state holds the generic world state: namespace -> key -> value.
//
// Values are kept in a canonical form so that two states holding the same data
// always serialize to the same bytes:
//
//	int64, float64, string, bool, nil, []any, map[string]any
//
// Set normalizes Go ints, uints, floats, slices, arrays and string-keyed maps
// into that form. Typed getters convert back.
package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

const (
	NSGlobals = "globals"
	NSAgent   = "agent"
)

// Keys every environment keeps under globals.
const (
	KeyEnv            = "env"
	KeySeed           = "seed"
	KeyMaxSteps       = "max_steps"
	KeyRemainingSteps = "remaining_steps"
	KeyStepsTaken     = "steps_taken"
)

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) value() []any { return []any{int64(p.X), int64(p.Y)} }

type State struct {
	ns map[string]map[string]any
}

func New() *State {
	return &State{ns: map[string]map[string]any{}}
}

// Set stores v under ns.key. It panics if v has no JSON representation
// (channels, funcs, NaN, non-string map keys); that is a caller bug.
func (s *State) Set(ns, key string, v any) {
	n, err := normalize(v)
	if err != nil {
		panic(fmt.Sprintf("state: set %s.%s: %v", ns, key, err))
	}
	m := s.ns[ns]
	if m == nil {
		m = map[string]any{}
		s.ns[ns] = m
	}
	m[key] = n
}

func (s *State) SetPos(ns, key string, p Pos) { s.Set(ns, key, p.value()) }

func (s *State) Delete(ns, key string) {
	if m := s.ns[ns]; m != nil {
		delete(m, key)
	}
}

func (s *State) HasNamespace(ns string) bool {
	_, ok := s.ns[ns]
	return ok
}

func (s *State) Has(ns, key string) bool {
	_, ok := s.ns[ns][key]
	return ok
}

// Get returns a deep copy of the stored value.
func (s *State) Get(ns, key string) (any, bool) {
	v, ok := s.ns[ns][key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

func (s *State) Namespaces() []string {
	out := make([]string, 0, len(s.ns))
	for k := range s.ns {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *State) Keys(ns string) []string {
	m := s.ns[ns]
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Paths lists every "ns.key" in sorted order.
func (s *State) Paths() []string {
	var out []string
	for _, ns := range s.Namespaces() {
		for _, k := range s.Keys(ns) {
			out = append(out, ns+"."+k)
		}
	}
	return out
}

func (s *State) Clone() *State {
	c := New()
	for ns, m := range s.ns {
		cm := make(map[string]any, len(m))
		for k, v := range m {
			cm[k] = cloneValue(v)
		}
		c.ns[ns] = cm
	}
	return c
}

// Map returns a deep copy of the state as nested maps.
func (s *State) Map() map[string]any {
	out := make(map[string]any, len(s.ns))
	for ns, m := range s.ns {
		cm := make(map[string]any, len(m))
		for k, v := range m {
			cm[k] = cloneValue(v)
		}
		out[ns] = cm
	}
	return out
}

// FromMap builds a state from decoded JSON/YAML. Every top-level entry must be
// a mapping.
func FromMap(m map[string]any) (*State, error) {
	s := New()
	for ns, raw := range m {
		inner, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("state: namespace %q is %T, want mapping", ns, raw)
		}
		cm := make(map[string]any, len(inner))
		for k, v := range inner {
			n, err := normalize(v)
			if err != nil {
				return nil, fmt.Errorf("state: %s.%s: %w", ns, k, err)
			}
			cm[k] = n
		}
		s.ns[ns] = cm
	}
	return s, nil
}

// Canonical returns the canonical JSON encoding (sorted keys).
func (s *State) Canonical() []byte {
	b, err := json.Marshal(s.ns)
	if err != nil {
		// Unreachable: Set and FromMap only admit JSON-representable values.
		panic(fmt.Sprintf("state: canonical encode: %v", err))
	}
	return b
}

func (s *State) Digest() string {
	sum := sha256.Sum256(s.Canonical())
	return hex.EncodeToString(sum[:])
}

func (s *State) Equal(o *State) bool {
	if s == nil || o == nil {
		return s == o
	}
	return bytes.Equal(s.Canonical(), o.Canonical())
}

// ChangedPaths lists the "ns.key" paths whose value differs between a and b,
// including paths present in only one of them.
func ChangedPaths(a, b *State) []string {
	seen := map[string]struct{}{}
	var out []string
	visit := func(ns, k string) {
		p := ns + "." + k
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		av, aok := a.ns[ns][k]
		bv, bok := b.ns[ns][k]
		if aok != bok || !valueEqual(av, bv) {
			out = append(out, p)
		}
	}
	for ns, m := range a.ns {
		for k := range m {
			visit(ns, k)
		}
	}
	for ns, m := range b.ns {
		for k := range m {
			visit(ns, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ns)
}

func (s *State) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	s.ns = parsed.ns
	return nil
}

func valueEqual(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-finite number %v", x)
		}
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return normalize(f)
	case Pos:
		return x.value(), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("uint %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return normalize(rv.Float())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key %s is not a string", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = n
		}
		return out, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported type %s", rv.Type())
}
