package evo

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"

	"groupevo/internal/algebra"
)

// Config wires an Engine. Rates are validated exactly like DefaultRates.
type Config struct {
	Rates    Rates
	Provider algebra.Provider
	Fitness  FitnessFunc

	// Rand is the single random source of the run. When nil a source seeded
	// with Seed is created.
	Rand *rand.Rand
	Seed int64

	// Selector defaults to a StrideSelector using Stride, or DefaultStride
	// when Stride is zero.
	Selector      Selector
	Stride        uint64
	AddStrategies []WeightedAddStrategy
	Identifier    StructureIdentifier

	// Workers bounds parallel fitness evaluation; values below 1 mean 1.
	Workers  int
	Logger   *slog.Logger
	Observer Observer
}

// Engine owns a population and its fitness table and advances them one
// generation at a time. Accessors return snapshots and may be called while
// Evolve runs on another goroutine.
type Engine struct {
	cfg        Config
	rng        *rand.Rand
	selector   Selector
	crossover  *Crossover
	mutation   *Mutation
	identifier StructureIdentifier
	logger     *slog.Logger

	evolveMu sync.Mutex

	mu         sync.RWMutex
	population []algebra.Structure
	fitness    []float64
	generation int
}

// NewEngine validates cfg, scores the initial population once and returns
// an engine ready to Evolve.
func NewEngine(cfg Config, initial []algebra.Structure) (*Engine, error) {
	schedule, err := NewSchedule(cfg.Rates)
	if err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("%w: initial population is empty", ErrInvalidState)
	}
	for i, individual := range initial {
		if individual == nil {
			return nil, fmt.Errorf("%w: nil individual at index %d", ErrInvalidState, i)
		}
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidState)
	}
	if cfg.Fitness == nil {
		return nil, fmt.Errorf("%w: fitness function is required", ErrInvalidState)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	selector := cfg.Selector
	if selector == nil {
		stride, err := NewStrideSelector(cfg.Stride, len(initial))
		if err != nil {
			return nil, err
		}
		selector = stride
	}
	mutation, err := NewMutation(schedule, cfg.Provider, cfg.AddStrategies)
	if err != nil {
		return nil, err
	}
	identifier := cfg.Identifier
	if identifier == nil {
		identifier = OrderIdentifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	population := append([]algebra.Structure(nil), initial...)
	fitness, err := evaluatePopulation(cfg.Fitness, population, cfg.Workers)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		rng:        rng,
		selector:   selector,
		crossover:  NewCrossover(schedule, cfg.Provider),
		mutation:   mutation,
		identifier: identifier,
		logger:     logger,
		population: population,
		fitness:    fitness,
	}, nil
}

// Evolve runs n generations. A failing generation is not committed: the
// population and fitness from the last completed generation stay in place
// and the error is returned.
func (e *Engine) Evolve(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: generations must be > 0, got %d", ErrInvalidState, n)
	}
	e.evolveMu.Lock()
	defer e.evolveMu.Unlock()

	for i := 0; i < n; i++ {
		if err := e.step(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step() error {
	// Only step writes population and fitness, and evolveMu serializes
	// steps, so reading them here without mu is safe.
	population := e.population
	fitness := e.fitness
	generation := e.generation + 1

	e.logger.Info("generation", "generation", generation, "population", len(population))
	if e.cfg.Observer != nil {
		e.cfg.Observer.GenerationStarted(generation)
	}

	size := len(population)
	rounds := (size + 1) / 2
	children := make([]algebra.Structure, 0, 2*rounds)
	lineage := make([]LineageEntry, 0, 2*rounds)
	for round := 0; round < rounds; round++ {
		i, err := e.selector.Select(e.rng, fitness)
		if err != nil {
			return err
		}
		j, err := e.selector.Select(e.rng, fitness)
		if err != nil {
			return err
		}
		c1, c2, crossKind, err := e.crossover.Cross(e.rng, population[i], population[j], fitness[i], fitness[j])
		if err != nil {
			return err
		}
		m1, mutKind1, err := e.mutation.Mutate(e.rng, c1)
		if err != nil {
			return err
		}
		m2, mutKind2, err := e.mutation.Mutate(e.rng, c2)
		if err != nil {
			return err
		}
		children = append(children, m1, m2)
		lineage = append(lineage,
			LineageEntry{Generation: generation, Index: len(lineage), Parents: [2]int{i, j}, Crossover: crossKind.String(), Mutation: mutKind1.String()},
			LineageEntry{Generation: generation, Index: len(lineage) + 1, Parents: [2]int{i, j}, Crossover: crossKind.String(), Mutation: mutKind2.String()},
		)
	}
	// Odd populations produce one surplus child in the last round; the
	// population size is held constant.
	children = children[:size]
	lineage = lineage[:size]

	scores, err := evaluatePopulation(e.cfg.Fitness, children, e.cfg.Workers)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.population = children
	e.fitness = scores
	e.generation = generation
	e.mu.Unlock()

	report := summarizeGeneration(generation, children, scores, lineage, e.identifier)
	e.logger.Debug("generation complete",
		"generation", generation,
		"best_fitness", report.BestFitness,
		"mean_fitness", report.MeanFitness,
		"diversity", report.Diversity,
	)
	if e.cfg.Observer != nil {
		e.cfg.Observer.GenerationCompleted(report)
	}
	return nil
}

// Population returns a snapshot of the current individuals.
func (e *Engine) Population() []algebra.Structure {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]algebra.Structure(nil), e.population...)
}

// Fitness returns a snapshot of the current fitness table.
func (e *Engine) Fitness() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]float64(nil), e.fitness...)
}

// Snapshot returns population, fitness and generation from one consistent
// state.
func (e *Engine) Snapshot() ([]algebra.Structure, []float64, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]algebra.Structure(nil), e.population...), append([]float64(nil), e.fitness...), e.generation
}

// Best returns the index and fitness of the fittest individual, the lowest
// index on ties.
func (e *Engine) Best() (int, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i := bestIndex(e.fitness)
	return i, e.fitness[i]
}

// Generation returns the number of committed generations.
func (e *Engine) Generation() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

func (e *Engine) Selector() Selector {
	return e.selector
}
