package util

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// PolyHash computes the polynomial rolling hash h = h*31 + b over the bytes of s.
// The result only depends on s, so it is stable across processes and restarts.
func PolyHash(s string) uint32 {
	var hash uint32
	for i := 0; i < len(s); i++ {
		hash = hash*31 + uint32(s[i])
	}
	return hash
}

// ShardIndex maps a key to one of n shards
func ShardIndex(key string, n int) int {
	return int(PolyHash(key) % uint32(n))
}
