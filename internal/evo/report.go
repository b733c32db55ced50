package evo

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"groupevo/internal/algebra"
)

// LineageEntry records how one child of a generation was produced.
type LineageEntry struct {
	Generation int    `json:"generation"`
	Index      int    `json:"index"`
	Parents    [2]int `json:"parents"`
	Crossover  string `json:"crossover"`
	Mutation   string `json:"mutation"`
}

// GenerationReport summarizes a committed generation. Mean and standard
// deviation are taken over finite fitness values only.
type GenerationReport struct {
	Generation    int            `json:"generation"`
	Size          int            `json:"size"`
	BestIndex     int            `json:"best_index"`
	BestFitness   float64        `json:"best_fitness"`
	MeanFitness   float64        `json:"mean_fitness"`
	StdDevFitness float64        `json:"stddev_fitness"`
	MinFitness    float64        `json:"min_fitness"`
	FiniteCount   int            `json:"finite_count"`
	Diversity     int            `json:"diversity"`
	Crossovers    map[string]int `json:"crossovers"`
	Mutations     map[string]int `json:"mutations"`
	Lineage       []LineageEntry `json:"lineage"`
}

// Observer receives progress notifications from an Engine. Callbacks run
// on the goroutine calling Evolve.
type Observer interface {
	GenerationStarted(generation int)
	GenerationCompleted(report GenerationReport)
}

// MultiObserver fans notifications out in order.
type MultiObserver []Observer

func (m MultiObserver) GenerationStarted(generation int) {
	for _, o := range m {
		if o != nil {
			o.GenerationStarted(generation)
		}
	}
}

func (m MultiObserver) GenerationCompleted(report GenerationReport) {
	for _, o := range m {
		if o != nil {
			o.GenerationCompleted(report)
		}
	}
}

// ReportRecorder keeps every report it observes.
type ReportRecorder struct {
	Reports []GenerationReport
}

func (*ReportRecorder) GenerationStarted(int) {}

func (r *ReportRecorder) GenerationCompleted(report GenerationReport) {
	r.Reports = append(r.Reports, report)
}

func summarizeGeneration(
	generation int,
	population []algebra.Structure,
	fitness []float64,
	lineage []LineageEntry,
	identifier StructureIdentifier,
) GenerationReport {
	report := GenerationReport{
		Generation:  generation,
		Size:        len(population),
		BestIndex:   bestIndex(fitness),
		MinFitness:  math.Inf(-1),
		MeanFitness: math.Inf(-1),
		Crossovers:  map[string]int{},
		Mutations:   map[string]int{},
		Lineage:     lineage,
	}
	if len(fitness) == 0 {
		return report
	}
	report.BestFitness = fitness[report.BestIndex]

	finite := make([]float64, 0, len(fitness))
	report.MinFitness = fitness[0]
	for _, f := range fitness {
		if f < report.MinFitness {
			report.MinFitness = f
		}
		if !math.IsInf(f, 0) {
			finite = append(finite, f)
		}
	}
	report.FiniteCount = len(finite)
	if len(finite) > 0 {
		report.MeanFitness = stat.Mean(finite, nil)
	}
	if len(finite) > 1 {
		report.StdDevFitness = stat.StdDev(finite, nil)
	}

	keys := make(map[string]struct{}, len(population))
	for _, individual := range population {
		keys[identifier.Identify(individual)] = struct{}{}
	}
	report.Diversity = len(keys)

	for _, entry := range lineage {
		report.Crossovers[entry.Crossover]++
		report.Mutations[entry.Mutation]++
	}
	return report
}

// bestIndex returns the index of the maximum fitness, lowest index on ties.
func bestIndex(fitness []float64) int {
	best := 0
	for i := 1; i < len(fitness); i++ {
		if fitness[i] > fitness[best] {
			best = i
		}
	}
	return best
}
