package platform

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"groupevo/internal/algebra"
	"groupevo/internal/evo"
	"groupevo/internal/fitness"
	"groupevo/internal/perm"
	"groupevo/internal/storage"
)

type testSupportModule struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (m *testSupportModule) Name() string { return m.name }

func (m *testSupportModule) Start(context.Context) error {
	*m.log = append(*m.log, "start:"+m.name)
	return m.startErr
}

func (m *testSupportModule) Stop(context.Context) error {
	*m.log = append(*m.log, "stop:"+m.name)
	return m.stopErr
}

func newTestPlatform(t *testing.T) *Platform {
	t.Helper()

	p := NewPlatform(Config{Store: storage.NewMemoryStore()})
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return p
}

func seedPopulation() []algebra.Structure {
	return []algebra.Structure{
		perm.Symmetric(3),
		perm.Cyclic(4),
		perm.Dihedral(4),
		perm.Alternating(4),
	}
}

func evolutionConfig(t *testing.T, runID string, initial []algebra.Structure) EvolutionConfig {
	t.Helper()

	provider := perm.NewProvider()
	target, err := fitness.NewClassTarget(provider, 5, true, []string{"D4"})
	if err != nil {
		t.Fatalf("class target: %v", err)
	}
	target.MaxDegree = 12
	return EvolutionConfig{
		RunID:       runID,
		Generations: 2,
		Engine: evo.Config{
			Rates:    evo.DefaultRates(),
			Provider: provider,
			Fitness:  target.Score,
			Rand:     rand.New(rand.NewSource(7)),
		},
		Initial: initial,
	}
}

func TestPlatformInitStartsAndStopsModulesInOrder(t *testing.T) {
	var log []string
	p := NewPlatform(Config{
		Store: storage.NewMemoryStore(),
		SupportModules: []SupportModule{
			&testSupportModule{name: "metrics", log: &log},
			&testSupportModule{name: "index", log: &log},
		},
	})
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !p.Started() {
		t.Fatal("expected platform to be started")
	}
	if got := p.ActiveSupportModules(); len(got) != 2 || got[0] != "index" || got[1] != "metrics" {
		t.Fatalf("unexpected active modules: %v", got)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	want := "start:metrics start:index stop:index stop:metrics"
	if got := strings.Join(log, " "); got != want {
		t.Fatalf("unexpected lifecycle: got=%q want=%q", got, want)
	}
	if p.Started() {
		t.Fatal("expected platform to be stopped")
	}
}

func TestPlatformInitRollsBackOnSupportModuleStartFailure(t *testing.T) {
	var log []string
	p := NewPlatform(Config{
		Store: storage.NewMemoryStore(),
		SupportModules: []SupportModule{
			&testSupportModule{name: "metrics", log: &log},
			&testSupportModule{name: "broken", startErr: errors.New("boom"), log: &log},
		},
	})
	err := p.Init(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected start failure naming the module, got %v", err)
	}
	want := "start:metrics start:broken stop:metrics"
	if got := strings.Join(log, " "); got != want {
		t.Fatalf("unexpected rollback: got=%q want=%q", got, want)
	}
	if p.Started() || len(p.ActiveSupportModules()) != 0 {
		t.Fatal("expected no started modules after rollback")
	}
}

func TestPlatformInitRejectsDuplicateModules(t *testing.T) {
	var log []string
	p := NewPlatform(Config{
		Store: storage.NewMemoryStore(),
		SupportModules: []SupportModule{
			&testSupportModule{name: "metrics", log: &log},
			&testSupportModule{name: "metrics", log: &log},
		},
	})
	if err := p.Init(context.Background()); err == nil {
		t.Fatal("expected duplicate module error")
	}
}

func TestRunEvolutionRequiresInit(t *testing.T) {
	p := NewPlatform(Config{Store: storage.NewMemoryStore()})
	_, err := p.RunEvolution(context.Background(), evolutionConfig(t, "run-1", seedPopulation()))
	if err == nil {
		t.Fatal("expected not initialized error")
	}
}

func TestRunEvolutionValidatesConfig(t *testing.T) {
	p := newTestPlatform(t)

	cfg := evolutionConfig(t, "", seedPopulation())
	if _, err := p.RunEvolution(context.Background(), cfg); err == nil {
		t.Fatal("expected missing run id error")
	}

	cfg = evolutionConfig(t, "run-1", seedPopulation())
	cfg.Generations = 0
	if _, err := p.RunEvolution(context.Background(), cfg); err == nil {
		t.Fatal("expected generation count error")
	}

	cfg = evolutionConfig(t, "run-1", nil)
	if _, err := p.RunEvolution(context.Background(), cfg); !errors.Is(err, evo.ErrInvalidState) {
		t.Fatalf("expected invalid state for empty population, got %v", err)
	}
}

func TestRunEvolutionPersistsResults(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)

	result, err := p.RunEvolution(ctx, evolutionConfig(t, "run-1", seedPopulation()))
	if err != nil {
		t.Fatalf("run evolution: %v", err)
	}
	if result.Generation != 2 || len(result.BestByGeneration) != 2 || len(result.MeanByGeneration) != 2 {
		t.Fatalf("unexpected result shape: %+v", result)
	}
	if len(result.Lineage) != 8 {
		t.Fatalf("expected 8 lineage records, got %d", len(result.Lineage))
	}
	if result.Best == nil {
		t.Fatal("expected best individual")
	}

	store := p.Store()
	population, ok, err := store.GetPopulation(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%t err=%v", ok, err)
	}
	if population.Generation != 2 || len(population.Individuals) != 4 {
		t.Fatalf("unexpected population: %+v", population)
	}
	for _, individual := range population.Individuals {
		if _, err := algebra.ParseGenerators(individual.Generators); err != nil {
			t.Fatalf("stored generators do not parse: %v", err)
		}
	}

	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 2 {
		t.Fatalf("unexpected history: ok=%t err=%v %v", ok, err, history)
	}
	diagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || len(diagnostics) != 2 || diagnostics[1].Generation != 2 {
		t.Fatalf("unexpected diagnostics: ok=%t err=%v %+v", ok, err, diagnostics)
	}

	top, ok, err := store.GetTopIndividuals(ctx, "run-1")
	if err != nil || !ok || len(top) == 0 {
		t.Fatalf("unexpected top individuals: ok=%t err=%v %+v", ok, err, top)
	}
	for i, item := range top {
		if item.Rank != i+1 {
			t.Fatalf("unexpected rank at %d: %+v", i, item)
		}
		if i > 0 && item.Individual.Fitness > top[i-1].Individual.Fitness {
			t.Fatalf("top individuals not sorted: %+v", top)
		}
	}
	if float64(top[0].Individual.Fitness) != result.BestFitness {
		t.Fatalf("top fitness %v does not match best %v", top[0].Individual.Fitness, result.BestFitness)
	}
}

func TestRunEvolutionContinuesStoredHistory(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)

	first, err := p.RunEvolution(ctx, evolutionConfig(t, "run-1", seedPopulation()))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	initial := make([]algebra.Structure, 0, len(first.Population.Individuals))
	for _, individual := range first.Population.Individuals {
		gens, err := algebra.ParseGenerators(individual.Generators)
		if err != nil {
			t.Fatalf("parse generators: %v", err)
		}
		g, err := perm.Build(gens)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		initial = append(initial, g)
	}

	cfg := evolutionConfig(t, "run-1", initial)
	cfg.InitialGeneration = first.Generation
	second, err := p.RunEvolution(ctx, cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Generation != 4 || second.Population.Generation != 4 {
		t.Fatalf("unexpected continued generation: %d", second.Generation)
	}
	if len(second.BestByGeneration) != 4 || len(second.GenerationDiagnostics) != 4 {
		t.Fatalf("expected merged history of 4 generations, got %d/%d", len(second.BestByGeneration), len(second.GenerationDiagnostics))
	}
	for i, d := range second.GenerationDiagnostics {
		if d.Generation != i+1 {
			t.Fatalf("unexpected diagnostics generation at %d: %d", i, d.Generation)
		}
	}
	last := second.Lineage[len(second.Lineage)-1]
	if len(second.Lineage) != 16 || last.Generation != 4 {
		t.Fatalf("unexpected merged lineage: len=%d last=%+v", len(second.Lineage), last)
	}
}
