package rng

import "testing"

func TestStream_SameSeedSameSequence(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 1000; i++ {
		if x, y := a.Uint64(), b.Uint64(); x != y {
			t.Fatalf("draw %d mismatch: %d vs %d", i, x, y)
		}
	}
	if a.Draws() != 1000 {
		t.Fatalf("draws = %d want 1000", a.Draws())
	}
}

func TestStream_DifferentSeeds(t *testing.T) {
	a := New(1)
	b := New(2)
	same := 0
	for i := 0; i < 64; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	if same == 64 {
		t.Fatalf("expected different sequences for different seeds")
	}
}

func TestStream_IntnBounds(t *testing.T) {
	s := New(7)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := s.Intn(6)
		if v < 0 || v >= 6 {
			t.Fatalf("Intn out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 6 {
		t.Fatalf("expected all 6 values, saw %v", seen)
	}
	if got := s.Intn(0); got != 0 {
		t.Fatalf("Intn(0) = %d", got)
	}
}

func TestStream_IntRangeInclusive(t *testing.T) {
	s := New(9)
	hitLo, hitHi := false, false
	for i := 0; i < 500; i++ {
		v := s.IntRange(1, 3)
		if v < 1 || v > 3 {
			t.Fatalf("IntRange out of range: %d", v)
		}
		hitLo = hitLo || v == 1
		hitHi = hitHi || v == 3
	}
	if !hitLo || !hitHi {
		t.Fatalf("expected both bounds to be drawn")
	}
}

func TestStream_PermIsPermutation(t *testing.T) {
	p := New(3).Perm(16)
	seen := make([]bool, 16)
	for _, v := range p {
		if seen[v] {
			t.Fatalf("duplicate %d in %v", v, p)
		}
		seen[v] = true
	}
}

func TestStream_ForkDeterministic(t *testing.T) {
	a := New(5).Fork("tiles")
	b := New(5).Fork("tiles")
	c := New(5).Fork("agent")
	if a.Seed() != b.Seed() {
		t.Fatalf("fork not deterministic")
	}
	if a.Seed() == c.Seed() {
		t.Fatalf("different labels should fork different streams")
	}
}

func TestStream_ChanceExtremes(t *testing.T) {
	s := New(11)
	before := s.Draws()
	if s.Chance(0) || !s.Chance(1000) {
		t.Fatalf("chance extremes wrong")
	}
	if s.Draws() != before {
		t.Fatalf("extreme chances must not draw")
	}
	if f := s.Float64(); f < 0 || f >= 1 {
		t.Fatalf("Float64 out of range: %v", f)
	}
}
