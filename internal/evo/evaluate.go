package evo

import (
	"fmt"
	"math"

	"github.com/sourcegraph/conc/pool"

	"groupevo/internal/algebra"
)

// FitnessFunc scores one individual; higher is better. -Inf marks a
// candidate that should never be selected over a finite one.
type FitnessFunc func(individual algebra.Structure) (float64, error)

// evaluatePopulation scores every individual on up to workers goroutines.
// Scores keep the order of population.
func evaluatePopulation(fitness FitnessFunc, population []algebra.Structure, workers int) ([]float64, error) {
	scores := make([]float64, len(population))
	if len(population) == 0 {
		return scores, nil
	}
	if workers > len(population) {
		workers = len(population)
	}
	if workers < 1 {
		workers = 1
	}

	p := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(workers)
	for i, individual := range population {
		i, individual := i, individual
		p.Go(func() error {
			score, err := fitness(individual)
			if err != nil {
				return err
			}
			if math.IsNaN(score) {
				return fmt.Errorf("%w: NaN for individual %d", ErrInvalidFitness, i)
			}
			scores[i] = score
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
