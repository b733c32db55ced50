package perm

import (
	"math/rand"

	"groupevo/internal/algebra"
)

// RandomPermutation returns a random permutation of n points built from
// algebra.RandomDescriptor.
func RandomPermutation(rng *rand.Rand, n int) Perm {
	p, err := FromDescriptor(algebra.RandomDescriptor(rng, n), n)
	if err != nil {
		// RandomDescriptor always partitions 1..n.
		panic(err)
	}
	return p
}

// RandomGroup draws between one and maxGens random permutations of n points
// and returns the group they generate.
func RandomGroup(rng *rand.Rand, n, maxGens int) *Group {
	if maxGens < 1 {
		maxGens = 1
	}
	count := rng.Intn(maxGens) + 1
	gens := make([]Perm, 0, count)
	for i := 0; i < count; i++ {
		gens = append(gens, RandomPermutation(rng, n))
	}
	return NewGroup(n, gens)
}
