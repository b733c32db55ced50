package evo

import (
	"fmt"
	"math/big"
	"math/rand"

	"groupevo/internal/algebra"
)

// AddStrategy names one way of synthesizing an extra generator.
type AddStrategy int

const (
	AddRandomGenerator AddStrategy = iota
	AddCommutatorPower
	AddProductPower
)

func (s AddStrategy) String() string {
	switch s {
	case AddRandomGenerator:
		return "random_generator"
	case AddCommutatorPower:
		return "commutator_power"
	case AddProductPower:
		return "product_power"
	default:
		return fmt.Sprintf("add_strategy(%d)", int(s))
	}
}

func AddStrategyFromName(name string) (AddStrategy, error) {
	for _, s := range []AddStrategy{AddRandomGenerator, AddCommutatorPower, AddProductPower} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unsupported add strategy: %s", name)
}

// WeightedAddStrategy is one row of the add-generator selection table.
type WeightedAddStrategy struct {
	Strategy AddStrategy
	Weight   float64
}

// DefaultAddStrategies weights the three strategies equally.
func DefaultAddStrategies() []WeightedAddStrategy {
	return []WeightedAddStrategy{
		{Strategy: AddRandomGenerator, Weight: 1},
		{Strategy: AddCommutatorPower, Weight: 1},
		{Strategy: AddProductPower, Weight: 1},
	}
}

// Mutation rewrites one individual according to the schedule's mutation
// partition. Inputs are never modified.
type Mutation struct {
	schedule   Schedule
	provider   algebra.Provider
	strategies []WeightedAddStrategy
}

// NewMutation validates the strategy table; an empty table selects
// DefaultAddStrategies.
func NewMutation(schedule Schedule, provider algebra.Provider, strategies []WeightedAddStrategy) (*Mutation, error) {
	if len(strategies) == 0 {
		strategies = DefaultAddStrategies()
	}
	positive := false
	for i, item := range strategies {
		if item.Strategy < AddRandomGenerator || item.Strategy > AddProductPower {
			return nil, fmt.Errorf("%w: unknown strategy %d at index %d", ErrInvalidAddStrategy, int(item.Strategy), i)
		}
		if item.Weight < 0 {
			return nil, fmt.Errorf("%w: weight must be >= 0 at index %d", ErrInvalidAddStrategy, i)
		}
		if item.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return nil, fmt.Errorf("%w: at least one positive weight is required", ErrInvalidAddStrategy)
	}
	return &Mutation{
		schedule:   schedule,
		provider:   provider,
		strategies: append([]WeightedAddStrategy(nil), strategies...),
	}, nil
}

// Mutate draws v from [0,1) and dispatches to Drop, Add or returns x.
func (m *Mutation) Mutate(rng *rand.Rand, x algebra.Structure) (algebra.Structure, MutationKind, error) {
	kind := m.schedule.Mutation(rng.Float64())
	switch kind {
	case MutationDropGenerator:
		y, err := m.Drop(rng, x)
		return y, kind, err
	case MutationAddGenerator:
		y, _, err := m.Add(rng, x)
		return y, kind, err
	default:
		return x, kind, nil
	}
}

// Drop removes one uniformly chosen generator and rebuilds. Removing the
// last generator, or dropping from an empty set, gives the trivial group.
func (m *Mutation) Drop(rng *rand.Rand, x algebra.Structure) (algebra.Structure, error) {
	gens := x.Generators()
	if len(gens) == 0 {
		return m.provider.Build(nil)
	}
	victim := rng.Intn(len(gens))
	rest := make([]algebra.Descriptor, 0, len(gens)-1)
	rest = append(rest, gens[:victim]...)
	rest = append(rest, gens[victim+1:]...)
	return m.provider.Build(rest)
}

// Add appends one synthesized generator to the non-identity generators of
// x and rebuilds. A single generator always uses AddRandomGenerator.
func (m *Mutation) Add(rng *rand.Rand, x algebra.Structure) (algebra.Structure, AddStrategy, error) {
	gens := nonIdentity(x.Generators())
	if len(gens) == 0 {
		return nil, AddRandomGenerator, ErrEmptyGeneratingSet
	}

	strategy := AddRandomGenerator
	if len(gens) > 1 {
		strategy = m.chooseStrategy(rng)
	}

	var (
		extra algebra.Descriptor
		err   error
	)
	switch strategy {
	case AddCommutatorPower:
		extra, err = m.commutatorPower(rng, gens)
	case AddProductPower:
		extra, err = m.productPower(rng, gens)
	default:
		extra = algebra.RandomDescriptor(rng, algebra.MaxPointOf(gens))
	}
	if err != nil {
		return nil, strategy, err
	}

	y, err := m.provider.Build(append(gens, extra))
	if err != nil {
		return nil, strategy, err
	}
	return y, strategy, nil
}

// commutatorPower returns x*y*x^-1*y^k with k uniform in [1, order(y)].
func (m *Mutation) commutatorPower(rng *rand.Rand, gens []algebra.Descriptor) (algebra.Descriptor, error) {
	x, y := pickDistinct(rng, gens)
	order, err := m.provider.ElementOrder(y)
	if err != nil {
		return nil, err
	}
	k := uniformExponent(rng, order)

	xy, err := m.provider.Multiply(x, y)
	if err != nil {
		return nil, err
	}
	xInv, err := m.provider.Inverse(x)
	if err != nil {
		return nil, err
	}
	yk, err := m.provider.Power(y, k)
	if err != nil {
		return nil, err
	}
	xyx, err := m.provider.Multiply(xy, xInv)
	if err != nil {
		return nil, err
	}
	return m.provider.Multiply(xyx, yk)
}

// productPower returns (x*y)^k with k uniform in [1, order(x)*order(y)].
func (m *Mutation) productPower(rng *rand.Rand, gens []algebra.Descriptor) (algebra.Descriptor, error) {
	x, y := pickDistinct(rng, gens)
	ox, err := m.provider.ElementOrder(x)
	if err != nil {
		return nil, err
	}
	oy, err := m.provider.ElementOrder(y)
	if err != nil {
		return nil, err
	}
	k := uniformExponent(rng, new(big.Int).Mul(ox, oy))

	xy, err := m.provider.Multiply(x, y)
	if err != nil {
		return nil, err
	}
	return m.provider.Power(xy, k)
}

func (m *Mutation) chooseStrategy(rng *rand.Rand) AddStrategy {
	total := 0.0
	for _, item := range m.strategies {
		total += item.Weight
	}
	pick := rng.Float64() * total
	acc := 0.0
	for _, item := range m.strategies {
		acc += item.Weight
		if pick < acc {
			return item.Strategy
		}
	}
	for i := len(m.strategies) - 1; i >= 0; i-- {
		if m.strategies[i].Weight > 0 {
			return m.strategies[i].Strategy
		}
	}
	return AddRandomGenerator
}

// pickDistinct draws two generators without replacement.
func pickDistinct(rng *rand.Rand, gens []algebra.Descriptor) (algebra.Descriptor, algebra.Descriptor) {
	i := rng.Intn(len(gens))
	j := rng.Intn(len(gens) - 1)
	if j >= i {
		j++
	}
	return gens[i], gens[j]
}

// uniformExponent draws k uniformly from [1, n].
func uniformExponent(rng *rand.Rand, n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return big.NewInt(1)
	}
	k := new(big.Int).Rand(rng, n)
	return k.Add(k, big.NewInt(1))
}

func nonIdentity(gens []algebra.Descriptor) []algebra.Descriptor {
	out := make([]algebra.Descriptor, 0, len(gens))
	for _, d := range gens {
		if !d.IsIdentity() {
			out = append(out, d)
		}
	}
	return out
}
