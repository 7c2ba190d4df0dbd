package state

import (
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func sample() *State {
	s := New()
	s.Set(NSGlobals, KeyEnv, "icemaze")
	s.Set(NSGlobals, KeySeed, int64(42))
	s.Set(NSGlobals, KeyMaxSteps, 30)
	s.Set(NSGlobals, KeyRemainingSteps, 30)
	s.SetPos(NSAgent, "pos", Pos{X: 0, Y: 0})
	s.Set(NSAgent, "score", 0.5)
	s.Set("world", "tiles", [][]string{{"ice", "water"}, {"ice", "ice"}})
	s.Set("world", "visited", []int{0, 2})
	s.Set("world", "meta", map[string]int{"b": 2, "a": 1})
	return s
}

func TestSet_NormalizesAndGetters(t *testing.T) {
	s := sample()
	if n, ok := s.Int(NSGlobals, KeyMaxSteps); !ok || n != 30 {
		t.Fatalf("Int max_steps = %d,%v", n, ok)
	}
	if f, ok := s.Float(NSAgent, "score"); !ok || f != 0.5 {
		t.Fatalf("Float score = %v,%v", f, ok)
	}
	if f, ok := s.Float(NSGlobals, KeyMaxSteps); !ok || f != 30 {
		t.Fatalf("Float of int = %v,%v", f, ok)
	}
	grid, ok := s.StringGrid("world", "tiles")
	if !ok || !reflect.DeepEqual(grid, [][]string{{"ice", "water"}, {"ice", "ice"}}) {
		t.Fatalf("StringGrid = %v,%v", grid, ok)
	}
	if p, ok := s.Pos(NSAgent, "pos"); !ok || p != (Pos{}) {
		t.Fatalf("Pos = %v,%v", p, ok)
	}
	if xs, ok := s.Ints("world", "visited"); !ok || !reflect.DeepEqual(xs, []int{0, 2}) {
		t.Fatalf("Ints = %v,%v", xs, ok)
	}
	if _, ok := s.String(NSGlobals, KeyMaxSteps); ok {
		t.Fatalf("String on int should fail")
	}
	if n, ok := s.Len("world", "tiles"); !ok || n != 2 {
		t.Fatalf("Len = %d,%v", n, ok)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := sample()
	v, _ := s.Get("world", "visited")
	v.([]any)[0] = int64(99)
	if xs, _ := s.Ints("world", "visited"); xs[0] != 0 {
		t.Fatalf("Get leaked internal slice: %v", xs)
	}
}

func TestSet_PanicsOnUnsupported(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for channel value")
		}
	}()
	New().Set("x", "y", make(chan int))
}

func TestClone_Independent(t *testing.T) {
	s := sample()
	c := s.Clone()
	c.Set(NSGlobals, KeyRemainingSteps, 29)
	if n, _ := s.Int(NSGlobals, KeyRemainingSteps); n != 30 {
		t.Fatalf("clone mutated original: %d", n)
	}
	if s.Equal(c) {
		t.Fatalf("expected states to differ")
	}
}

func TestJSON_RoundTripIdempotent(t *testing.T) {
	s := sample()
	b1, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back State
	if err := json.Unmarshal(b1, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b2, err := json.Marshal(&back)
	if err != nil {
		t.Fatalf("marshal 2: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatalf("round trip differs:\n%s\n%s", b1, b2)
	}
	if s.Digest() != back.Digest() {
		t.Fatalf("digest differs after round trip")
	}
}

func TestYAML_RoundTrip(t *testing.T) {
	s := sample()
	raw, err := yaml.Marshal(s)
	if err != nil {
		t.Fatalf("yaml marshal: %v", err)
	}
	var back State
	if err := yaml.Unmarshal(raw, &back); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if !s.Equal(&back) {
		t.Fatalf("yaml round trip mismatch:\n%s\n%s", s.Canonical(), back.Canonical())
	}
}

func TestFromMap_RejectsNonMappingNamespace(t *testing.T) {
	if _, err := FromMap(map[string]any{"globals": []any{1}}); err == nil {
		t.Fatalf("expected error for list namespace")
	}
}

func TestChangedPaths(t *testing.T) {
	a := sample()
	b := a.Clone()
	b.Set(NSAgent, "pos", Pos{X: 1, Y: 0})
	b.Set("world", "goal", Pos{X: 1, Y: 1})
	b.Delete("world", "meta")
	got := ChangedPaths(a, b)
	want := []string{"agent.pos", "world.goal", "world.meta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChangedPaths = %v want %v", got, want)
	}
}

func TestPaths_Sorted(t *testing.T) {
	got := sample().Paths()
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("paths not sorted: %v", got)
		}
	}
}
