package mathx

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// HashString is a stable 64-bit hash of s (FNV-1a, then mixed).
func HashString(s string) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return mix64(h)
}

// Stagger spreads ids across [0, interval) so periodic work is not all due on
// the same tick.
func Stagger(id string, interval uint64) uint64 {
	if interval == 0 {
		return 0
	}
	return HashString(id) % interval
}

// Due reports whether work keyed by id runs at tick for the given interval.
func Due(tick uint64, id string, interval uint64) bool {
	if interval <= 1 {
		return true
	}
	return (tick+Stagger(id, interval))%interval == 0
}
