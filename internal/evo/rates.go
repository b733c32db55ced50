package evo

import (
	"fmt"
	"math"
)

// Rates holds the four operator probabilities of a run.
type Rates struct {
	GeneratorCrossover     float64 `json:"generator_crossover"`
	DirectProductCrossover float64 `json:"direct_product_crossover"`
	DropGenerator          float64 `json:"drop_generator"`
	AddGenerator           float64 `json:"add_generator"`
}

func DefaultRates() Rates {
	return Rates{
		GeneratorCrossover:     0.4,
		DirectProductCrossover: 0.3,
		DropGenerator:          0.4,
		AddGenerator:           0.5,
	}
}

const (
	ConstraintGeneratorCrossoverRange     = "generator_crossover_range"
	ConstraintDirectProductCrossoverRange = "direct_product_crossover_range"
	ConstraintCrossoverSum                = "crossover_sum"
	ConstraintDropGeneratorRange          = "drop_generator_range"
	ConstraintAddGeneratorRange           = "add_generator_range"
	ConstraintMutationSum                 = "mutation_sum"
)

// ConfigError reports the first rate constraint a configuration violates.
type ConfigError struct {
	Constraint string
	Value      float64
}

func (e *ConfigError) Error() string {
	switch e.Constraint {
	case ConstraintCrossoverSum, ConstraintMutationSum:
		return fmt.Sprintf("invalid rates: %s must be < 1, got %g", e.Constraint, e.Value)
	default:
		return fmt.Sprintf("invalid rates: %s must be in [0, 1), got %g", e.Constraint, e.Value)
	}
}

// Validate checks every probability lies in [0, 1) and that each operator
// family sums below 1. NaN fails the range check.
func (r Rates) Validate() error {
	ranges := []struct {
		constraint string
		value      float64
	}{
		{ConstraintGeneratorCrossoverRange, r.GeneratorCrossover},
		{ConstraintDirectProductCrossoverRange, r.DirectProductCrossover},
		{ConstraintDropGeneratorRange, r.DropGenerator},
		{ConstraintAddGeneratorRange, r.AddGenerator},
	}
	for _, item := range ranges {
		if !inUnitInterval(item.value) {
			return &ConfigError{Constraint: item.constraint, Value: item.value}
		}
	}
	if sum := r.GeneratorCrossover + r.DirectProductCrossover; sum >= 1 {
		return &ConfigError{Constraint: ConstraintCrossoverSum, Value: sum}
	}
	if sum := r.DropGenerator + r.AddGenerator; sum >= 1 {
		return &ConfigError{Constraint: ConstraintMutationSum, Value: sum}
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v < 1
}

type CrossoverKind int

const (
	CrossoverPassThrough CrossoverKind = iota
	CrossoverSplice
	CrossoverDirectProduct
)

func (k CrossoverKind) String() string {
	switch k {
	case CrossoverSplice:
		return "generator_splice"
	case CrossoverDirectProduct:
		return "direct_product"
	default:
		return "pass_through"
	}
}

type MutationKind int

const (
	MutationIdentity MutationKind = iota
	MutationDropGenerator
	MutationAddGenerator
)

func (k MutationKind) String() string {
	switch k {
	case MutationDropGenerator:
		return "drop_generator"
	case MutationAddGenerator:
		return "add_generator"
	default:
		return "identity"
	}
}

// Schedule is a validated, read-only view of Rates that maps uniform draws
// onto operator kinds.
type Schedule struct {
	rates Rates
}

func NewSchedule(r Rates) (Schedule, error) {
	if err := r.Validate(); err != nil {
		return Schedule{}, err
	}
	return Schedule{rates: r}, nil
}

func (s Schedule) Rates() Rates {
	return s.rates
}

func (s Schedule) GeneratorCrossover() float64 {
	return s.rates.GeneratorCrossover
}

func (s Schedule) DirectProductCrossover() float64 {
	return s.rates.DirectProductCrossover
}

func (s Schedule) DropGenerator() float64 {
	return s.rates.DropGenerator
}

func (s Schedule) AddGenerator() float64 {
	return s.rates.AddGenerator
}

// Crossover partitions [0,1) into splice, direct product and pass-through.
func (s Schedule) Crossover(u float64) CrossoverKind {
	switch {
	case u < s.rates.GeneratorCrossover:
		return CrossoverSplice
	case u < s.rates.GeneratorCrossover+s.rates.DirectProductCrossover:
		return CrossoverDirectProduct
	default:
		return CrossoverPassThrough
	}
}

// Mutation partitions [0,1) into drop, add and identity.
func (s Schedule) Mutation(v float64) MutationKind {
	switch {
	case v < s.rates.DropGenerator:
		return MutationDropGenerator
	case v < s.rates.DropGenerator+s.rates.AddGenerator:
		return MutationAddGenerator
	default:
		return MutationIdentity
	}
}
