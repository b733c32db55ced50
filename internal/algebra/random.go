package algebra

import "math/rand"

// RandomDescriptor synthesizes a random permutation of {1..n}. It draws a
// cycle budget in [1, n], then repeatedly carves a random-size subset out of
// the unconsumed points as the next cycle. Points never consumed are kept as
// singletons so the descriptor always covers the whole domain.
func RandomDescriptor(rng *rand.Rand, n int) Descriptor {
	if n <= 0 {
		return Descriptor{}
	}
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i + 1
	}

	maxCycles := rng.Intn(n) + 1
	out := make(Descriptor, 0, maxCycles)
	for i := 0; i < maxCycles && len(remaining) > 0; i++ {
		k := rng.Intn(len(remaining)) + 1
		for j := 0; j < k; j++ {
			r := j + rng.Intn(len(remaining)-j)
			remaining[j], remaining[r] = remaining[r], remaining[j]
		}
		out = append(out, append(Cycle(nil), remaining[:k]...))
		remaining = remaining[k:]
	}
	for _, point := range remaining {
		out = append(out, Cycle{point})
	}
	return out
}
