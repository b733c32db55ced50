package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Score is a fitness value that survives JSON. Infinite values are written
// as the strings "-Inf" and "+Inf".
type Score float64

func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	switch {
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsNaN(f):
		return nil, fmt.Errorf("score is NaN")
	}
	return json.Marshal(f)
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		switch text {
		case "-Inf":
			*s = Score(math.Inf(-1))
		case "+Inf", "Inf":
			*s = Score(math.Inf(1))
		default:
			return fmt.Errorf("invalid score %q", text)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

func Scores(values []float64) []Score {
	out := make([]Score, len(values))
	for i, v := range values {
		out[i] = Score(v)
	}
	return out
}

func Floats(scores []Score) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = float64(s)
	}
	return out
}

// IndividualRecord is one group of a population in cycle notation.
type IndividualRecord struct {
	Index       int      `json:"index"`
	Generators  []string `json:"generators"`
	Order       string   `json:"order"`
	Degree      int      `json:"degree"`
	Fitness     Score    `json:"fitness"`
	Description string   `json:"description,omitempty"`
}

// PopulationRecord is the population snapshot of a run after its last
// committed generation.
type PopulationRecord struct {
	VersionedRecord
	ID          string             `json:"id"`
	Generation  int                `json:"generation"`
	Individuals []IndividualRecord `json:"individuals"`
}

type LineageRecord struct {
	VersionedRecord
	Generation int    `json:"generation"`
	Index      int    `json:"index"`
	Parents    [2]int `json:"parents"`
	Crossover  string `json:"crossover"`
	Mutation   string `json:"mutation"`
}

type GenerationDiagnostics struct {
	Generation    int            `json:"generation"`
	BestFitness   Score          `json:"best_fitness"`
	MeanFitness   Score          `json:"mean_fitness"`
	StdDevFitness Score          `json:"stddev_fitness"`
	MinFitness    Score          `json:"min_fitness"`
	FiniteCount   int            `json:"finite_count"`
	Diversity     int            `json:"diversity"`
	Crossovers    map[string]int `json:"crossovers,omitempty"`
	Mutations     map[string]int `json:"mutations,omitempty"`
}

type TopIndividualRecord struct {
	Rank       int              `json:"rank"`
	Individual IndividualRecord `json:"individual"`
	Classes    int              `json:"classes"`
	Abelian    bool             `json:"abelian"`
}

type RatesRecord struct {
	GeneratorCrossover     float64 `json:"generator_crossover"`
	DirectProductCrossover float64 `json:"direct_product_crossover"`
	DropGenerator          float64 `json:"drop_generator"`
	AddGenerator           float64 `json:"add_generator"`
}

// RunRecord describes a finished run.
type RunRecord struct {
	VersionedRecord
	ID             string      `json:"id"`
	CreatedAt      time.Time   `json:"created_at"`
	Seed           int64       `json:"seed"`
	PopulationSize int         `json:"population_size"`
	Generations    int         `json:"generations"`
	Selector       string      `json:"selector"`
	Stride         uint64      `json:"stride"`
	Rates          RatesRecord `json:"rates"`
	TargetClasses  int         `json:"target_classes"`
	Forbidden      []string    `json:"forbidden,omitempty"`
	BestFitness    Score       `json:"best_fitness"`
	BestGenerators []string    `json:"best_generators"`
	BestOrder      string      `json:"best_order"`
	Description    string      `json:"description,omitempty"`
}
