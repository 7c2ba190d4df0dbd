package mathx

import "testing"

func TestHash2_Stable(t *testing.T) {
	a := Hash2(42, 3, -7)
	b := Hash2(42, 3, -7)
	if a != b {
		t.Fatalf("hash not stable: %d vs %d", a, b)
	}
	if Hash2(43, 3, -7) == a {
		t.Fatalf("expected different seed to change hash")
	}
}

func TestDeriveSeed(t *testing.T) {
	if got := DeriveSeed(7, 0); got != 7 {
		t.Fatalf("attempt 0 should keep seed, got %d", got)
	}
	s1 := DeriveSeed(7, 1)
	s2 := DeriveSeed(7, 2)
	if s1 == 7 || s1 == s2 {
		t.Fatalf("expected distinct derived seeds: %d %d", s1, s2)
	}
	if s1 < 0 || s2 < 0 {
		t.Fatalf("derived seeds must be non-negative: %d %d", s1, s2)
	}
	if DeriveSeed(7, 1) != s1 {
		t.Fatalf("derived seed not deterministic")
	}
}

func TestManhattan(t *testing.T) {
	if got := Manhattan(0, 0, 7, 7); got != 14 {
		t.Fatalf("Manhattan = %d want 14", got)
	}
	if got := Manhattan(3, -2, 1, 1); got != 5 {
		t.Fatalf("Manhattan = %d want 5", got)
	}
}
