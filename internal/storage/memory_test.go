package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"groupevo/internal/model"
)

func newInitializedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()

	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), model.RunRecord{ID: "run-1"})
	if !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestMemoryStoreRunRoundTripAndOrdering(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []model.RunRecord{
		{VersionedRecord: Versioned(), ID: "run-b", CreatedAt: base.Add(time.Minute)},
		{VersionedRecord: Versioned(), ID: "run-c", CreatedAt: base},
		{VersionedRecord: Versioned(), ID: "run-a", CreatedAt: base.Add(time.Minute), BestGenerators: []string{"(1,2)"}},
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
	if len(listed) != 3 || listed[0].ID != "run-c" || listed[1].ID != "run-a" || listed[2].ID != "run-b" {
		t.Fatalf("unexpected run order: %+v", listed)
	}

	got, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	got.BestGenerators[0] = "mutated"
	again, _, _ := store.GetRun(ctx, "run-a")
	if again.BestGenerators[0] != "(1,2)" {
		t.Fatalf("stored run was aliased: %+v", again)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
}

func TestMemoryStorePopulationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	population := model.PopulationRecord{
		VersionedRecord: Versioned(),
		ID:              "run-1",
		Generation:      2,
		Individuals: []model.IndividualRecord{
			{Index: 0, Generators: []string{"(1,2,3)"}, Order: "3", Degree: 3, Fitness: 0},
		},
	}
	if err := store.SavePopulation(ctx, population); err != nil {
		t.Fatalf("save population: %v", err)
	}
	population.Individuals[0].Generators[0] = "mutated"

	loaded, ok, err := store.GetPopulation(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%t err=%v", ok, err)
	}
	if loaded.Individuals[0].Generators[0] != "(1,2,3)" {
		t.Fatalf("stored population was aliased: %+v", loaded)
	}

	if err := store.DeletePopulation(ctx, "run-1"); err != nil {
		t.Fatalf("delete population: %v", err)
	}
	if _, ok, _ := store.GetPopulation(ctx, "run-1"); ok {
		t.Fatal("expected population to be deleted")
	}
}

func TestMemoryStoreFitnessHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := []float64{0.1, 0.2, 0.3}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted fitness history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}
}

func TestMemoryStoreGenerationDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := []model.GenerationDiagnostics{
		{Generation: 1, BestFitness: 0.8, MeanFitness: 0.6, MinFitness: 0.2, Diversity: 2, Mutations: map[string]int{"identity": 4}},
		{Generation: 2, BestFitness: 0.9, MeanFitness: 0.7, MinFitness: 0.3, Diversity: 3},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", input); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	input[0].Mutations["identity"] = 0

	output, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted diagnostics")
	}
	if len(output) != 2 || output[1].Diversity != 3 {
		t.Fatalf("unexpected diagnostics: %+v", output)
	}
	if output[0].Mutations["identity"] != 4 {
		t.Fatalf("stored diagnostics were aliased: %+v", output[0])
	}
}

func TestMemoryStoreTopIndividualsAndLineage(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	top := []model.TopIndividualRecord{
		{Rank: 1, Individual: model.IndividualRecord{Generators: []string{"(1,2)"}, Order: "2"}, Classes: 2, Abelian: true},
	}
	if err := store.SaveTopIndividuals(ctx, "run-1", top); err != nil {
		t.Fatalf("save top: %v", err)
	}
	loadedTop, ok, err := store.GetTopIndividuals(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get top: ok=%t err=%v", ok, err)
	}
	if len(loadedTop) != 1 || !loadedTop[0].Abelian || loadedTop[0].Individual.Order != "2" {
		t.Fatalf("unexpected top individuals: %+v", loadedTop)
	}

	lineage := []model.LineageRecord{{
		VersionedRecord: Versioned(),
		Generation:      1,
		Index:           0,
		Parents:         [2]int{3, 5},
		Crossover:       "direct_product",
		Mutation:        "drop_generator",
	}}
	if err := store.SaveLineage(ctx, "run-1", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	loaded, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get lineage: ok=%t err=%v", ok, err)
	}
	if len(loaded) != 1 || loaded[0].Parents != [2]int{3, 5} || loaded[0].Crossover != "direct_product" {
		t.Fatalf("unexpected lineage: %+v", loaded)
	}

	if _, ok, err := store.GetLineage(ctx, "run-2"); ok || err != nil {
		t.Fatalf("expected missing lineage, ok=%t err=%v", ok, err)
	}
}
