// Package reward holds an environment's reward schedule: named triggers split
// into goal-completion and incidental categories.
package reward

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"envforge.ai/internal/sim/state"
)

type Kind string

const (
	KindGoal       Kind = "goal"
	KindIncidental Kind = "incidental"
)

// Limit bounds how many times a trigger can fire in one episode. The zero
// Limit means once.
type Limit struct {
	Count  int    `yaml:"count,omitempty" json:"count,omitempty"`
	Budget bool   `yaml:"budget,omitempty" json:"budget,omitempty"`
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	Per    int    `yaml:"per,omitempty" json:"per,omitempty"`
}

// Resolve returns the fire count against st. A trigger fires at most once per
// step, so the result never exceeds budget.
func (l Limit) Resolve(st *state.State, budget int) int {
	n := 1
	switch {
	case l.Count > 0:
		n = l.Count
	case l.Path != "":
		n = countAt(st, l.Path)
		if l.Per > 1 {
			n /= l.Per
		}
	case l.Budget:
		n = budget
	}
	if n > budget {
		n = budget
	}
	if n < 0 {
		n = 0
	}
	return n
}

// countAt reads an int value, a list length, or a grid cell count.
func countAt(st *state.State, path string) int {
	ns, key, ok := strings.Cut(path, ".")
	if !ok || st == nil {
		return 0
	}
	v, ok := st.Get(ns, key)
	if !ok {
		return 0
	}
	if n, ok := state.AsInt(v); ok {
		return n
	}
	xs, ok := v.([]any)
	if !ok {
		return 0
	}
	cells := 0
	for _, row := range xs {
		inner, ok := row.([]any)
		if !ok {
			return len(xs)
		}
		cells += len(inner)
	}
	return cells
}

type Trigger struct {
	Name  string  `yaml:"-" json:"name"`
	Kind  Kind    `yaml:"-" json:"kind"`
	Value float64 `yaml:"value" json:"value"`
	Limit Limit   `yaml:"limit,omitempty" json:"limit,omitempty"`
}

// Schedule is ordered: goal triggers first, each group sorted by name.
type Schedule struct {
	Triggers []Trigger
}

func (s Schedule) Lookup(name string) (Trigger, bool) {
	for _, t := range s.Triggers {
		if t.Name == name {
			return t, true
		}
	}
	return Trigger{}, false
}

func (s Schedule) Of(kind Kind) []Trigger {
	var out []Trigger
	for _, t := range s.Triggers {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Eval sums the values of every event that names a trigger. Events with no
// trigger are ignored; the returned slice lists the ones that fired.
func (s Schedule) Eval(events []string) (float64, []string) {
	total := 0.0
	var fired []string
	for _, ev := range events {
		t, ok := s.Lookup(ev)
		if !ok {
			continue
		}
		total += t.Value
		fired = append(fired, ev)
	}
	return total, fired
}

func (s *Schedule) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Goal       map[string]Trigger `yaml:"goal"`
		Incidental map[string]Trigger `yaml:"incidental"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.Triggers = nil
	seen := map[string]Kind{}
	add := func(kind Kind, m map[string]Trigger) error {
		names := make([]string, 0, len(m))
		for n := range m {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if prev, dup := seen[n]; dup {
				return fmt.Errorf("reward trigger %q declared as both %s and %s", n, prev, kind)
			}
			seen[n] = kind
			t := m[n]
			t.Name = n
			t.Kind = kind
			s.Triggers = append(s.Triggers, t)
		}
		return nil
	}
	if err := add(KindGoal, raw.Goal); err != nil {
		return err
	}
	return add(KindIncidental, raw.Incidental)
}

func (s Schedule) MarshalYAML() (any, error) {
	out := map[string]map[string]Trigger{}
	for _, t := range s.Triggers {
		m := out[string(t.Kind)]
		if m == nil {
			m = map[string]Trigger{}
			out[string(t.Kind)] = m
		}
		m[t.Name] = t
	}
	return out, nil
}
