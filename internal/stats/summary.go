package stats

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"groupevo/internal/evo"
	"groupevo/internal/model"
)

// SummarizeGeneration converts an engine report into its persisted form.
func SummarizeGeneration(report evo.GenerationReport) model.GenerationDiagnostics {
	return model.GenerationDiagnostics{
		Generation:    report.Generation,
		BestFitness:   model.Score(report.BestFitness),
		MeanFitness:   model.Score(report.MeanFitness),
		StdDevFitness: model.Score(report.StdDevFitness),
		MinFitness:    model.Score(report.MinFitness),
		FiniteCount:   report.FiniteCount,
		Diversity:     report.Diversity,
		Crossovers:    maps.Clone(report.Crossovers),
		Mutations:     maps.Clone(report.Mutations),
	}
}

// LineageRecords converts the lineage of one report into versioned records.
func LineageRecords(header model.VersionedRecord, report evo.GenerationReport) []model.LineageRecord {
	out := make([]model.LineageRecord, 0, len(report.Lineage))
	for _, entry := range report.Lineage {
		out = append(out, model.LineageRecord{
			VersionedRecord: header,
			Generation:      entry.Generation,
			Index:           entry.Index,
			Parents:         entry.Parents,
			Crossover:       entry.Crossover,
			Mutation:        entry.Mutation,
		})
	}
	return out
}

// FormatCounts renders operator counts as "a=1 b=2" in key order.
func FormatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := maps.Keys(counts)
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
