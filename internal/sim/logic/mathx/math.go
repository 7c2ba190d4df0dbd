package mathx

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Mix64 is the splitmix64 finalizer. Every seeded draw in the repo goes through it.
func Mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return Mix64(v)
}

// DeriveSeed maps (seed, attempt) to a fresh seed for generation retries.
func DeriveSeed(seed int64, attempt int) int64 {
	if attempt == 0 {
		return seed
	}
	return int64(Hash2(seed, attempt, 0x5eed) >> 1)
}

// Manhattan returns |ax-bx| + |ay-by|.
func Manhattan(ax, ay, bx, by int) int {
	return AbsInt(ax-bx) + AbsInt(ay-by)
}
