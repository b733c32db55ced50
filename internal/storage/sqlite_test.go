//go:build sqlite

package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"groupevo/internal/model"
)

func openSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "groupevo.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreRunAndPopulationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openSQLiteStore(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []model.RunRecord{
		{VersionedRecord: Versioned(), ID: "run-2", CreatedAt: base.Add(time.Second), BestFitness: model.Score(math.Inf(-1))},
		{VersionedRecord: Versioned(), ID: "run-1", CreatedAt: base, BestFitness: 0.5, BestGenerators: []string{"(1,2,3)"}},
	}
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "run-1" || listed[1].ID != "run-2" {
		t.Fatalf("unexpected run order: %+v", listed)
	}
	if !math.IsInf(float64(listed[1].BestFitness), -1) {
		t.Fatalf("expected -Inf best fitness, got %v", listed[1].BestFitness)
	}

	population := model.PopulationRecord{
		VersionedRecord: Versioned(),
		ID:              "run-1",
		Generation:      4,
		Individuals: []model.IndividualRecord{
			{Index: 0, Generators: []string{"(1,2)", "(3,4)"}, Order: "4", Degree: 4, Fitness: 0},
		},
	}
	if err := store.SavePopulation(ctx, population); err != nil {
		t.Fatalf("save population: %v", err)
	}
	population.Generation = 5
	if err := store.SavePopulation(ctx, population); err != nil {
		t.Fatalf("upsert population: %v", err)
	}

	loaded, ok, err := store.GetPopulation(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%t err=%v", ok, err)
	}
	if loaded.Generation != 5 || len(loaded.Individuals[0].Generators) != 2 {
		t.Fatalf("unexpected population: %+v", loaded)
	}
}

func TestSQLiteStoreRunPayloads(t *testing.T) {
	ctx := context.Background()
	store := openSQLiteStore(t)

	if err := store.SaveFitnessHistory(ctx, "run-1", []float64{math.Inf(-1), 0.25}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(history) != 2 || !math.IsInf(history[0], -1) || history[1] != 0.25 {
		t.Fatalf("unexpected history: %v", history)
	}

	diagnostics := []model.GenerationDiagnostics{{Generation: 1, BestFitness: 0.25, Diversity: 3}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || len(loadedDiagnostics) != 1 || loadedDiagnostics[0].Diversity != 3 {
		t.Fatalf("unexpected diagnostics: ok=%t err=%v %+v", ok, err, loadedDiagnostics)
	}

	top := []model.TopIndividualRecord{{Rank: 1, Classes: 3, Individual: model.IndividualRecord{Order: "6"}}}
	if err := store.SaveTopIndividuals(ctx, "run-1", top); err != nil {
		t.Fatalf("save top: %v", err)
	}
	loadedTop, ok, err := store.GetTopIndividuals(ctx, "run-1")
	if err != nil || !ok || len(loadedTop) != 1 || loadedTop[0].Classes != 3 {
		t.Fatalf("unexpected top: ok=%t err=%v %+v", ok, err, loadedTop)
	}

	lineage := []model.LineageRecord{{VersionedRecord: Versioned(), Generation: 1, Parents: [2]int{0, 1}, Crossover: "pass_through", Mutation: "identity"}}
	if err := store.SaveLineage(ctx, "run-1", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	loadedLineage, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil || !ok || len(loadedLineage) != 1 || loadedLineage[0].Mutation != "identity" {
		t.Fatalf("unexpected lineage: ok=%t err=%v %+v", ok, err, loadedLineage)
	}

	if _, ok, err := store.GetLineage(ctx, "run-missing"); ok || err != nil {
		t.Fatalf("expected missing lineage, ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	store := NewSQLiteStore("")
	if err := store.Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "groupevo.db"))
	if err := store.SaveFitnessHistory(context.Background(), "run-1", nil); err == nil {
		t.Fatal("expected not initialized error")
	}
}
