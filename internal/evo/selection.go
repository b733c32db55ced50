package evo

import (
	"fmt"
	"math"
	"math/rand"

	"modernc.org/mathutil"
)

// DefaultStride is the largest prime below 2^63. It is odd, so it is
// coprime with every power-of-two population size and with most others.
const DefaultStride uint64 = 9223372036854775783

// Selector picks a parent index from a fitness table.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, fitness []float64) (int, error)
}

// StrideSelector walks the population with a fixed stride from a cursor that
// persists between calls, keeping the fittest index it passes. With a stride
// coprime to the population size a scan visits every index and returns the
// global maximum; otherwise it covers one coset, a partial tournament.
type StrideSelector struct {
	stride uint64
	cursor uint64
}

// NewStrideSelector starts the cursor at stride mod initialSize. A zero
// stride selects DefaultStride; even strides are rejected.
func NewStrideSelector(stride uint64, initialSize int) (*StrideSelector, error) {
	if stride == 0 {
		stride = DefaultStride
	}
	if stride%2 == 0 {
		return nil, fmt.Errorf("%w: stride must be odd, got %d", ErrInvalidState, stride)
	}
	if initialSize <= 0 {
		return nil, fmt.Errorf("%w: initial population size must be > 0", ErrInvalidState)
	}
	return &StrideSelector{stride: stride, cursor: stride % uint64(initialSize)}, nil
}

func (*StrideSelector) Name() string {
	return "stride"
}

func (s *StrideSelector) Stride() uint64 {
	return s.stride
}

func (s *StrideSelector) Cursor() uint64 {
	return s.cursor
}

// Select draws a random starting candidate, then scans exactly n cursor
// positions. A cursor index replaces the candidate when its fitness is
// higher, or equal with a lower index.
func (s *StrideSelector) Select(rng *rand.Rand, fitness []float64) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("%w: random source is required", ErrInvalidState)
	}
	n := len(fitness)
	if n == 0 {
		return 0, fmt.Errorf("%w: cannot select from an empty population", ErrInvalidState)
	}
	if err := checkFitness(fitness); err != nil {
		return 0, err
	}

	size := uint64(n)
	step := s.stride % size
	candidate := rng.Intn(n)
	cursor := s.cursor % size
	for i := 0; i < n; i++ {
		if preferred(fitness, int(cursor), candidate) {
			candidate = int(cursor)
		}
		cursor = (cursor + step) % size
	}
	s.cursor = cursor
	return candidate, nil
}

// Coverage returns the number of distinct indices one scan visits for a
// population of size n.
func (s *StrideSelector) Coverage(n int) int {
	if n <= 0 {
		return 0
	}
	return n / int(mathutil.GCDUint64(s.stride, uint64(n)))
}

// TournamentSelector samples Size indices uniformly with replacement and
// keeps the fittest, ties going to the lower index.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng *rand.Rand, fitness []float64) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("%w: random source is required", ErrInvalidState)
	}
	n := len(fitness)
	if n == 0 {
		return 0, fmt.Errorf("%w: cannot select from an empty population", ErrInvalidState)
	}
	if err := checkFitness(fitness); err != nil {
		return 0, err
	}

	size := s.Size
	if size <= 0 {
		size = 3
	}
	best := rng.Intn(n)
	for i := 1; i < size; i++ {
		candidate := rng.Intn(n)
		if preferred(fitness, candidate, best) {
			best = candidate
		}
	}
	return best, nil
}

// preferred reports whether index a beats index b. -Inf compares below every
// finite value.
func preferred(fitness []float64, a, b int) bool {
	if fitness[a] != fitness[b] {
		return fitness[a] > fitness[b]
	}
	return a < b
}

func checkFitness(fitness []float64) error {
	for i, f := range fitness {
		if math.IsNaN(f) {
			return fmt.Errorf("%w: NaN at index %d", ErrInvalidFitness, i)
		}
	}
	return nil
}
