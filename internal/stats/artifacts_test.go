package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"groupevo/internal/model"
)

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			PopulationSize: 4,
			Generations:    3,
			Seed:           1,
			Selector:       "stride",
			TargetClasses:  10,
			Workers:        2,
		},
		BestByGeneration: []float64{math.Inf(-1), 0.6, 0.7},
		MeanByGeneration: []float64{math.Inf(-1), 0.3, 0.4},
		FinalBestFitness: 0.7,
		TopIndividuals: []model.TopIndividualRecord{{
			Rank:       1,
			Individual: model.IndividualRecord{Generators: []string{"(1,2,3)", "(1,2)"}, Order: "6", Degree: 3, Fitness: 0.7},
			Classes:    3,
		}},
		Lineage: []model.LineageRecord{{
			Generation: 1,
			Parents:    [2]int{0, 1},
			Crossover:  "generator_splice",
			Mutation:   "identity",
		}},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{"config.json", "fitness_history.json", "top_individuals.json", "lineage.json", "generation_diagnostics.json", "fitness_series.csv"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.TargetClasses != 10 || cfg.Selector != "stride" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	history, ok, err := ReadFitnessHistory(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read history: ok=%t err=%v", ok, err)
	}
	if len(history.BestByGeneration) != 3 || !math.IsInf(float64(history.BestByGeneration[0]), -1) {
		t.Fatalf("unexpected history: %+v", history)
	}

	top, ok, err := ReadTopIndividuals(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read top: ok=%t err=%v", ok, err)
	}
	if len(top) != 1 || top[0].Classes != 3 {
		t.Fatalf("unexpected top individuals: %+v", top)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestExportMissingRun(t *testing.T) {
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestFitnessSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	runDir := filepath.Join(baseDir, "run-1")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := WriteFitnessSeries(runDir, []float64{math.Inf(-1), 0.25, 0.5}, []float64{0, 0.1}); err != nil {
		t.Fatalf("write series: %v", err)
	}
	series, ok, err := ReadFitnessSeries(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || !math.IsInf(series[0], -1) || series[2] != 0.5 {
		t.Fatalf("unexpected series: %v", series)
	}

	if _, ok, err := ReadFitnessSeries(baseDir, "run-2"); ok || err != nil {
		t.Fatalf("expected missing series, ok=%t err=%v", ok, err)
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	entries := []RunIndexEntry{
		{RunID: "run-1", PopulationSize: 8, FinalBestFitness: 0.8, CreatedAtUTC: "2026-02-10T10:00:00Z"},
		{RunID: "run-2", PopulationSize: 8, FinalBestFitness: 0.9, CreatedAtUTC: "2026-02-10T11:00:00Z"},
		{RunID: "run-3", PopulationSize: 8, FinalBestFitness: model.Score(math.Inf(-1)), CreatedAtUTC: "2026-02-10T11:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(index))
	}
	if index[0].RunID != "run-3" || index[1].RunID != "run-2" || index[2].RunID != "run-1" {
		t.Fatalf("unexpected index order: %+v", index)
	}
	if !math.IsInf(float64(index[0].FinalBestFitness), -1) {
		t.Fatalf("expected -Inf fitness to survive the index, got %v", index[0].FinalBestFitness)
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-1", PopulationSize: 16, FinalBestFitness: 0.95, CreatedAtUTC: "2026-02-10T12:00:00Z"}); err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}
	index, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(index) != 3 || index[0].RunID != "run-1" || index[0].PopulationSize != 16 {
		t.Fatalf("unexpected index after upsert: %+v", index)
	}
}

func TestListRunIndexEmpty(t *testing.T) {
	index, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list empty index: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected empty index, got %+v", index)
	}
}
