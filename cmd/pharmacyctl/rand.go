package main

import "math/rand"

// seededRand returns nil for 0 so the seeder falls back to a clock-seeded source
func seededRand(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed))
}
