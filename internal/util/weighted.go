// Package util provides shared helper utilities.
//revive:disable:var-naming // Package name follows project convention.
package util

import "math/rand"

// PickProbability selects an index from a probability vector.
// Non-positive entries are never picked unless every entry is non-positive,
// in which case the pick is uniform.
func PickProbability(r *rand.Rand, probs []float64) int {
	total := 0.0
	for _, p := range probs {
		if p > 0 {
			total += p
		}
	}
	if total <= 0 {
		return r.Intn(len(probs))
	}
	roll := r.Float64() * total
	sum := 0.0
	last := -1
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		sum += p
		last = i
		if roll < sum {
			return i
		}
	}
	return last
}

// PickOne returns a uniformly chosen element index of a non-empty slice length.
func PickOne(r *rand.Rand, n int) int {
	if n <= 1 {
		return 0
	}
	return r.Intn(n)
}

// Chance returns true with a given percent chance.
func Chance(r *rand.Rand, percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	return r.Intn(100) < percent
}
