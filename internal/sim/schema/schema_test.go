package schema

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

const gridYAML = `
env: tiny
version: 1
namespaces:
  globals:
    max_steps: {type: int, required: true, min: 1}
    remaining_steps: {type: int, required: true, min: 0}
    steps_taken: {type: int, required: true, initial: 0}
  agent:
    pos: {type: pos, required: true, bounds: world.tiles}
  world:
    tiles: {type: grid, required: true, rows: 2, cols: 3, elem: string, enum: [ice, water]}
    goal: {type: pos, required: true, bounds: world.tiles}
solvability:
  kind: reachability
  budget: globals.max_steps
  grid: world.tiles
  passable: [ice]
  start: agent.pos
  goal: world.goal
rewards:
  goal:
    reach_goal: {value: 10}
  incidental:
    explore: {value: 0.1, limit: {path: world.tiles}}
`

func TestParse_Valid(t *testing.T) {
	s, err := Parse([]byte(gridYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Env != "tiny" {
		t.Fatalf("env = %q", s.Env)
	}
	f, ok := s.Field("world.tiles")
	if !ok || f.Type != TypeGrid || f.Rows != 2 || f.Cols != 3 {
		t.Fatalf("tiles field = %+v,%v", f, ok)
	}
	if got := s.FieldPaths(); len(got) != 6 || got[0] != "agent.pos" {
		t.Fatalf("FieldPaths = %v", got)
	}
	if len(s.Rewards.Triggers) != 2 {
		t.Fatalf("rewards = %+v", s.Rewards)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"version":        strings.Replace(gridYAML, "version: 1", "version: 2", 1),
		"grid dims":      strings.Replace(gridYAML, "rows: 2", "rows: 0", 1),
		"unknown type":   strings.Replace(gridYAML, "type: pos, required: true, bounds: world.tiles}\n  world", "type: vec, required: true}\n  world", 1),
		"bad bounds":     strings.Replace(gridYAML, "bounds: world.tiles}\n  world", "bounds: world.nope}\n  world", 1),
		"bad kind":       strings.Replace(gridYAML, "kind: reachability", "kind: teleport", 1),
		"missing budget": strings.Replace(gridYAML, "budget: globals.max_steps", "budget: globals.nope", 1),
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCompile_ValidatesShape(t *testing.T) {
	s, err := Parse([]byte(gridYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	compiled, err := s.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	decode := func(doc string) any {
		dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return v
	}

	good := decode(`{
	  "globals":{"max_steps":5,"remaining_steps":5,"steps_taken":0},
	  "agent":{"pos":[0,0]},
	  "world":{"tiles":[["ice","ice","water"],["water","ice","ice"]],"goal":[2,1]}
	}`)
	if err := compiled.Validate(good); err != nil {
		t.Fatalf("expected valid: %v", err)
	}

	bad := decode(`{
	  "globals":{"max_steps":5,"remaining_steps":5,"steps_taken":0},
	  "agent":{"pos":[0,0]},
	  "world":{"tiles":[["ice","lava","water"],["water","ice"]],"goal":[2,1]}
	}`)
	if err := compiled.Validate(bad); err == nil {
		t.Fatalf("expected enum and row-length violations")
	}
}
