// Package rng provides the seeded random stream threaded through world
// generation. There is no package-level source: every caller owns a Stream.
package rng

import (
	"hash/fnv"

	"envforge.ai/internal/sim/logic/mathx"
)

// Stream is a splitmix64 sequence. It is not safe for concurrent use; parallel
// generation gives each world its own Stream.
type Stream struct {
	seed  int64
	state uint64
	draws uint64
}

func New(seed int64) *Stream {
	return &Stream{seed: seed, state: uint64(seed)}
}

func (s *Stream) Seed() int64   { return s.seed }
func (s *Stream) Draws() uint64 { return s.draws }

func (s *Stream) Uint64() uint64 {
	s.draws++
	s.state += 0x9e3779b97f4a7c15
	return mathx.Mix64(s.state)
}

// Intn returns a value in [0,n). n <= 0 returns 0 without drawing.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	bound := uint64(n)
	// Rejection sampling keeps the distribution uniform.
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		v := s.Uint64()
		if v < limit {
			return int(v % bound)
		}
	}
}

// IntRange returns a value in [lo,hi] (inclusive).
func (s *Stream) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.Intn(hi-lo+1)
}

func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// Chance reports true with probability permille/1000.
func (s *Stream) Chance(permille int) bool {
	if permille <= 0 {
		return false
	}
	if permille >= 1000 {
		return true
	}
	return s.Intn(1000) < permille
}

// Shuffle is a Fisher-Yates shuffle over n elements.
func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

func (s *Stream) Perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	s.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Fork derives an independent stream keyed by label. The parent is advanced by
// exactly one draw so forks taken in the same order are reproducible.
func (s *Stream) Fork(label string) *Stream {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	child := int64(mathx.Mix64(s.Uint64() ^ h.Sum64()))
	return New(child)
}
