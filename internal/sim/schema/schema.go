// Package schema declares, per environment, what a well-formed State looks
// like: namespaces, fields, container shapes, enumerations, initial values,
// multiset cardinalities, the solvability pattern and the reward schedule.
//
// Schemas are YAML documents embedded next to each environment.
package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"envforge.ai/internal/sim/reward"
)

const Version = 1

type FieldType string

const (
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeString FieldType = "string"
	TypeBool   FieldType = "bool"
	TypeList   FieldType = "list"
	TypeMap    FieldType = "map"
	TypeGrid   FieldType = "grid"
	TypePos    FieldType = "pos"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeInt, TypeFloat, TypeString, TypeBool, TypeList, TypeMap, TypeGrid, TypePos:
		return true
	}
	return false
}

func (t FieldType) scalar() bool {
	switch t {
	case TypeInt, TypeFloat, TypeString, TypeBool:
		return true
	}
	return false
}

// Multiset requires every distinct element of a list or grid to occur exactly
// Each times.
type Multiset struct {
	Each int `yaml:"each"`
}

type Field struct {
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required,omitempty"`
	Elem     FieldType `yaml:"elem,omitempty"`
	Enum     []string  `yaml:"enum,omitempty"`
	Rows     int       `yaml:"rows,omitempty"`
	Cols     int       `yaml:"cols,omitempty"`
	Len      int       `yaml:"len,omitempty"`
	Min      *float64  `yaml:"min,omitempty"`
	Max      *float64  `yaml:"max,omitempty"`
	Initial  any       `yaml:"initial,omitempty"`
	Multiset *Multiset `yaml:"multiset,omitempty"`
	// Bounds names the grid a pos field must lie inside.
	Bounds string `yaml:"bounds,omitempty"`
}

// Solvability kinds.
const (
	KindReachability = "reachability"
	KindMatching     = "matching"
	KindEncoding     = "encoding"
)

type Solvability struct {
	Kind   string `yaml:"kind"`
	Budget string `yaml:"budget"`

	// reachability
	Grid     string   `yaml:"grid,omitempty"`
	Passable []string `yaml:"passable,omitempty"`
	Start    string   `yaml:"start,omitempty"`
	Goal     string   `yaml:"goal,omitempty"`

	// matching
	Slots     string `yaml:"slots,omitempty"`
	GroupSize int    `yaml:"group_size,omitempty"`
	Cleared   string `yaml:"cleared,omitempty"`

	// encoding
	Codec   string `yaml:"codec,omitempty"`
	Encoded string `yaml:"encoded,omitempty"`
	Key     string `yaml:"key,omitempty"`
	Target  string `yaml:"target,omitempty"`

	Resources []Resource `yaml:"resources,omitempty"`
}

// Resource ties a state value to the range the action vocabulary can express.
type Resource struct {
	Path     string `yaml:"path"`
	Charset  string `yaml:"charset,omitempty"`
	MaxIndex *int   `yaml:"max_index,omitempty"`
}

type Schema struct {
	Env         string                      `yaml:"env"`
	Version     int                         `yaml:"version"`
	Namespaces  map[string]map[string]Field `yaml:"namespaces"`
	Solvability Solvability                 `yaml:"solvability"`
	Rewards     reward.Schedule             `yaml:"rewards"`
}

func Parse(raw []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("schema %s: unsupported version %d", s.Env, s.Version)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

func Load(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// MustParse is for schemas embedded in the binary; a bad one is a build defect.
func MustParse(raw []byte) *Schema {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// SplitPath splits "ns.key".
func SplitPath(p string) (ns, key string, ok bool) {
	ns, key, ok = strings.Cut(p, ".")
	if !ok || ns == "" || key == "" {
		return "", "", false
	}
	return ns, key, true
}

func (s *Schema) Field(path string) (Field, bool) {
	ns, key, ok := SplitPath(path)
	if !ok {
		return Field{}, false
	}
	f, ok := s.Namespaces[ns][key]
	return f, ok
}

func (s *Schema) NamespaceNames() []string {
	out := make([]string, 0, len(s.Namespaces))
	for ns := range s.Namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// FieldPaths lists every declared "ns.key" in sorted order.
func (s *Schema) FieldPaths() []string {
	var out []string
	for _, ns := range s.NamespaceNames() {
		names := make([]string, 0, len(s.Namespaces[ns]))
		for k := range s.Namespaces[ns] {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			out = append(out, ns+"."+k)
		}
	}
	return out
}

// Check verifies the schema document itself.
func (s *Schema) Check() error {
	if s.Env == "" {
		return fmt.Errorf("schema: missing env")
	}
	if len(s.Namespaces) == 0 {
		return fmt.Errorf("schema %s: no namespaces", s.Env)
	}
	for _, p := range s.FieldPaths() {
		f, _ := s.Field(p)
		if err := s.checkField(p, f); err != nil {
			return fmt.Errorf("schema %s: %s: %w", s.Env, p, err)
		}
	}
	if err := s.checkSolvability(); err != nil {
		return fmt.Errorf("schema %s: solvability: %w", s.Env, err)
	}
	return nil
}

func (s *Schema) checkField(path string, f Field) error {
	if !f.Type.valid() {
		return fmt.Errorf("unknown type %q", f.Type)
	}
	if f.Elem != "" && (!f.Elem.valid() || !f.Elem.scalar()) {
		return fmt.Errorf("elem must be a scalar type, got %q", f.Elem)
	}
	switch f.Type {
	case TypeGrid:
		if f.Rows <= 0 || f.Cols <= 0 {
			return fmt.Errorf("grid needs positive rows and cols")
		}
	case TypeList:
	default:
		if f.Multiset != nil {
			return fmt.Errorf("multiset only applies to list or grid")
		}
		if f.Elem != "" {
			return fmt.Errorf("elem only applies to list or grid")
		}
	}
	if f.Multiset != nil && f.Multiset.Each <= 0 {
		return fmt.Errorf("multiset each must be positive")
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("min %v > max %v", *f.Min, *f.Max)
	}
	if f.Bounds != "" {
		if f.Type != TypePos {
			return fmt.Errorf("bounds only applies to pos")
		}
		g, ok := s.Field(f.Bounds)
		if !ok || g.Type != TypeGrid {
			return fmt.Errorf("bounds %q is not a declared grid", f.Bounds)
		}
	}
	return nil
}

func (s *Schema) checkSolvability() error {
	sv := s.Solvability
	need := func(label, path string, types ...FieldType) error {
		if path == "" {
			return fmt.Errorf("%s: missing path", label)
		}
		f, ok := s.Field(path)
		if !ok {
			return fmt.Errorf("%s: %q not declared", label, path)
		}
		for _, t := range types {
			if f.Type == t {
				return nil
			}
		}
		return fmt.Errorf("%s: %q has type %s", label, path, f.Type)
	}
	if err := need("budget", sv.Budget, TypeInt); err != nil {
		return err
	}
	switch sv.Kind {
	case KindReachability:
		if err := need("grid", sv.Grid, TypeGrid); err != nil {
			return err
		}
		if err := need("start", sv.Start, TypePos); err != nil {
			return err
		}
		if err := need("goal", sv.Goal, TypePos); err != nil {
			return err
		}
		if len(sv.Passable) == 0 {
			return fmt.Errorf("passable: empty")
		}
	case KindMatching:
		if err := need("slots", sv.Slots, TypeList); err != nil {
			return err
		}
		if sv.GroupSize < 2 {
			return fmt.Errorf("group_size must be >= 2")
		}
		if sv.Cleared != "" {
			if err := need("cleared", sv.Cleared, TypeInt); err != nil {
				return err
			}
		}
	case KindEncoding:
		if err := need("codec", sv.Codec, TypeString); err != nil {
			return err
		}
		if err := need("encoded", sv.Encoded, TypeString); err != nil {
			return err
		}
		if err := need("key", sv.Key, TypeInt); err != nil {
			return err
		}
		if err := need("target", sv.Target, TypeString); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown kind %q", sv.Kind)
	}
	for _, r := range sv.Resources {
		if _, ok := s.Field(r.Path); !ok {
			return fmt.Errorf("resource %q not declared", r.Path)
		}
		if r.Charset == "" && r.MaxIndex == nil {
			return fmt.Errorf("resource %q: needs charset or max_index", r.Path)
		}
	}
	return nil
}
