// Package sliceutil provides small generic slice helpers.
package sliceutil

import "math/rand"

func Map[From any, To any](v []From, f func(From) To) []To {
	out := make([]To, len(v))
	for idx := 0; idx < len(v); idx++ {
		out[idx] = f(v[idx])
	}
	return out
}

// Shuffle randomizes the order of v in place using r, or the package-level
// source when r is nil.
func Shuffle[T any](v []T, r *rand.Rand) {
	swap := func(i, j int) { v[i], v[j] = v[j], v[i] }
	if r == nil {
		rand.Shuffle(len(v), swap)
		return
	}
	r.Shuffle(len(v), swap)
}
