package evo

import (
	"math/rand"

	"groupevo/internal/algebra"
)

// Crossover combines two parents according to the schedule's crossover
// partition. Parents are never modified.
type Crossover struct {
	schedule Schedule
	provider algebra.Provider
}

func NewCrossover(schedule Schedule, provider algebra.Provider) *Crossover {
	return &Crossover{schedule: schedule, provider: provider}
}

// Cross draws u from [0,1) and dispatches to Splice, Product or a plain
// copy of both parents.
func (c *Crossover) Cross(rng *rand.Rand, p1, p2 algebra.Structure, f1, f2 float64) (algebra.Structure, algebra.Structure, CrossoverKind, error) {
	kind := c.schedule.Crossover(rng.Float64())
	switch kind {
	case CrossoverSplice:
		c1, c2, err := c.Splice(rng, p1, p2)
		return c1, c2, kind, err
	case CrossoverDirectProduct:
		c1, c2, err := c.Product(p1, p2, f1, f2)
		return c1, c2, kind, err
	default:
		return p1, p2, kind, nil
	}
}

// Splice joins the head of one generating set with the tail of the other.
// Each child draws its own splice point in [0, min(|g1|,|g2|)-1]; the point
// is 0 when either set is empty.
func (c *Crossover) Splice(rng *rand.Rand, p1, p2 algebra.Structure) (algebra.Structure, algebra.Structure, error) {
	g1 := p1.Generators()
	g2 := p2.Generators()
	limit := min(len(g1), len(g2))

	first := splicePoint(rng, limit)
	c1, err := c.provider.Build(joinGenerators(g1[:first], g2[first:]))
	if err != nil {
		return nil, nil, err
	}
	second := splicePoint(rng, limit)
	c2, err := c.provider.Build(joinGenerators(g2[:second], g1[second:]))
	if err != nil {
		return nil, nil, err
	}
	return c1, c2, nil
}

// Product returns p1 x p2 and the fitter parent squared, p2 on ties.
func (c *Crossover) Product(p1, p2 algebra.Structure, f1, f2 float64) (algebra.Structure, algebra.Structure, error) {
	c1, err := c.provider.DirectProduct(p1, p2)
	if err != nil {
		return nil, nil, err
	}
	fitter := p2
	if f1 > f2 {
		fitter = p1
	}
	c2, err := c.provider.DirectProduct(fitter, fitter)
	if err != nil {
		return nil, nil, err
	}
	return c1, c2, nil
}

func splicePoint(rng *rand.Rand, limit int) int {
	if limit <= 0 {
		return 0
	}
	return rng.Intn(limit)
}

func joinGenerators(head, tail []algebra.Descriptor) []algebra.Descriptor {
	out := make([]algebra.Descriptor, 0, len(head)+len(tail))
	out = append(out, head...)
	return append(out, tail...)
}
