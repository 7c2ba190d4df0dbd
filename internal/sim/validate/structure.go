package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
)

// CheckStructure validates st against sc. With initial set, fields that
// declare an initial value must still hold it.
func CheckStructure(sc *schema.Schema, st *state.State, initial bool) []Issue {
	compiled, err := sc.Compile()
	if err != nil {
		return []Issue{errorf(CategoryConfig, "", "%v", err)}
	}
	return checkStructure(sc, compiled, st, initial)
}

func checkStructure(sc *schema.Schema, compiled *jsonschema.Schema, st *state.State, initial bool) []Issue {
	if st == nil {
		return []Issue{errorf(CategoryStructure, "", "state is nil")}
	}
	var issues []Issue

	doc, err := instance(st)
	if err != nil {
		return []Issue{errorf(CategoryStructure, "", "encode state: %v", err)}
	}
	if err := compiled.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return []Issue{errorf(CategoryStructure, "", "%v", err)}
		}
		for _, leaf := range leaves(ve) {
			issues = append(issues, errorf(CategoryStructure, pointerPath(leaf.InstanceLocation), "%s", leaf.Message))
		}
	}

	for _, p := range sc.FieldPaths() {
		f, _ := sc.Field(p)
		ns, key, _ := schema.SplitPath(p)
		v, ok := st.Get(ns, key)
		if !ok {
			continue
		}
		if initial && f.Initial != nil && !sameValue(v, f.Initial) {
			issues = append(issues, errorf(CategoryConfig, p, "initial value is %s, want %s", jsonText(v), jsonText(f.Initial)))
		}
		if f.Multiset != nil {
			issues = append(issues, checkMultiset(p, v, f.Multiset.Each)...)
		}
		if f.Bounds != "" {
			if is, bad := checkBounds(sc, p, v, f.Bounds); bad {
				issues = append(issues, is)
			}
		}
	}
	return issues
}

// instance renders st the way the jsonschema validator expects decoded JSON.
func instance(st *state.State) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(st.Canonical()))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// pointerPath turns "/world/tiles/0/3" into "world.tiles.0.3".
func pointerPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}

func sameValue(have, want any) bool {
	tmp := state.New()
	tmp.Set("x", "v", want)
	norm, _ := tmp.Get("x", "v")
	return jsonText(have) == jsonText(norm)
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func checkMultiset(path string, v any, each int) []Issue {
	vals, ok := Flatten(v)
	if !ok {
		return nil
	}
	var issues []Issue
	counts := Cardinality(vals)
	for _, sym := range sortedKeys(counts) {
		if n := counts[sym]; n != each {
			issues = append(issues, errorf(CategoryStructure, path, "%q appears %d times, want %d", sym, n, each))
		}
	}
	return issues
}

func checkBounds(sc *schema.Schema, path string, v any, grid string) (Issue, bool) {
	xy, ok := state.AsInts(v)
	if !ok || len(xy) != 2 {
		return Issue{}, false
	}
	g, _ := sc.Field(grid)
	if xy[0] < 0 || xy[1] < 0 || xy[0] >= g.Cols || xy[1] >= g.Rows {
		return errorf(CategoryStructure, path, "position (%d,%d) outside %s (%dx%d)", xy[0], xy[1], grid, g.Cols, g.Rows), true
	}
	return Issue{}, false
}
