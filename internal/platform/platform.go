package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"groupevo/internal/algebra"
	"groupevo/internal/evo"
	"groupevo/internal/model"
	"groupevo/internal/stats"
	"groupevo/internal/storage"
)

const defaultTopCount = 5

type Config struct {
	Store          storage.Store
	SupportModules []SupportModule
}

// SupportModule is a process-scoped helper started with the platform, such
// as the metrics endpoint.
type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type EvolutionConfig struct {
	RunID string
	// InitialGeneration is the number of generations already committed
	// under RunID. Stored history is prepended to the new results.
	InitialGeneration int
	Generations       int
	TopCount          int
	Engine            evo.Config
	Initial           []algebra.Structure
}

type EvolutionResult struct {
	RunID                 string
	Generation            int
	BestByGeneration      []float64
	MeanByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	Lineage               []model.LineageRecord
	Population            model.PopulationRecord
	TopFinal              []model.TopIndividualRecord
	Best                  algebra.Structure
	BestFitness           float64
}

// Platform owns the store and support modules and executes runs against
// them. One run id may be active at a time.
type Platform struct {
	store storage.Store

	mu             sync.RWMutex
	supportModules map[string]SupportModule
	moduleOrder    []string
	started        bool
	runs           map[string]struct{}

	config Config
}

func NewPlatform(cfg Config) *Platform {
	return &Platform{
		store:          cfg.Store,
		supportModules: make(map[string]SupportModule),
		runs:           make(map[string]struct{}),
		config:         cfg,
	}
}

// Init initializes the store and starts support modules in order. On
// failure every module started so far is stopped again.
func (p *Platform) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}

	started := make([]SupportModule, 0, len(p.config.SupportModules))
	fail := func(err error) error {
		stopSupportModules(ctx, started)
		p.supportModules = make(map[string]SupportModule)
		p.moduleOrder = nil
		return err
	}
	for i, module := range p.config.SupportModules {
		if module == nil {
			return fail(fmt.Errorf("support module is nil at index %d", i))
		}
		name := module.Name()
		if name == "" {
			return fail(fmt.Errorf("support module name is required at index %d", i))
		}
		if _, exists := p.supportModules[name]; exists {
			return fail(fmt.Errorf("duplicate support module: %s", name))
		}
		if err := module.Start(ctx); err != nil {
			return fail(fmt.Errorf("start support module %s: %w", name, err))
		}
		p.supportModules[name] = module
		p.moduleOrder = append(p.moduleOrder, name)
		started = append(started, module)
	}

	p.started = true
	return nil
}

// Stop stops support modules in reverse start order and returns the first
// error.
func (p *Platform) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for i := len(p.moduleOrder) - 1; i >= 0; i-- {
		if err := p.supportModules[p.moduleOrder[i]].Stop(ctx); err != nil && first == nil {
			first = fmt.Errorf("stop support module %s: %w", p.moduleOrder[i], err)
		}
	}
	p.started = false
	p.supportModules = make(map[string]SupportModule)
	p.moduleOrder = nil
	p.runs = make(map[string]struct{})
	return first
}

func (p *Platform) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Platform) Store() storage.Store {
	return p.store
}

func (p *Platform) ActiveSupportModules() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := append([]string(nil), p.moduleOrder...)
	sort.Strings(names)
	return names
}

// RunEvolution builds an engine over cfg.Initial, evolves it and persists
// the final population, per-generation history, lineage and top
// individuals under cfg.RunID.
func (p *Platform) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.RunID == "" {
		return EvolutionResult{}, fmt.Errorf("run id is required")
	}
	if cfg.Generations <= 0 {
		return EvolutionResult{}, fmt.Errorf("generations must be > 0, got %d", cfg.Generations)
	}
	if cfg.InitialGeneration < 0 {
		return EvolutionResult{}, fmt.Errorf("initial generation must be >= 0, got %d", cfg.InitialGeneration)
	}
	if cfg.TopCount <= 0 {
		cfg.TopCount = defaultTopCount
	}
	if !p.Started() {
		return EvolutionResult{}, fmt.Errorf("platform is not initialized")
	}
	if err := p.registerRun(cfg.RunID); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRun(cfg.RunID)

	recorder := &evo.ReportRecorder{}
	engineCfg := cfg.Engine
	if engineCfg.Observer != nil {
		engineCfg.Observer = evo.MultiObserver{recorder, engineCfg.Observer}
	} else {
		engineCfg.Observer = recorder
	}
	engine, err := evo.NewEngine(engineCfg, cfg.Initial)
	if err != nil {
		return EvolutionResult{}, err
	}
	if err := engine.Evolve(cfg.Generations); err != nil {
		return EvolutionResult{}, fmt.Errorf("evolve run %s: %w", cfg.RunID, err)
	}

	provider := engineCfg.Provider
	population, fitness, generation := engine.Snapshot()
	generation += cfg.InitialGeneration

	result := EvolutionResult{
		RunID:      cfg.RunID,
		Generation: generation,
		Population: model.PopulationRecord{
			VersionedRecord: storage.Versioned(),
			ID:              cfg.RunID,
			Generation:      generation,
			Individuals:     individualRecords(provider, population, fitness),
		},
	}
	for _, report := range recorder.Reports {
		report = offsetReport(report, cfg.InitialGeneration)
		result.BestByGeneration = append(result.BestByGeneration, report.BestFitness)
		result.MeanByGeneration = append(result.MeanByGeneration, report.MeanFitness)
		result.GenerationDiagnostics = append(result.GenerationDiagnostics, stats.SummarizeGeneration(report))
		result.Lineage = append(result.Lineage, stats.LineageRecords(storage.Versioned(), report)...)
	}
	result.TopFinal = topIndividuals(provider, result.Population.Individuals, cfg.TopCount)

	if cfg.InitialGeneration > 0 {
		result, err = p.mergeExistingRunHistory(ctx, result, cfg.TopCount)
		if err != nil {
			return EvolutionResult{}, err
		}
	}
	best, bestFitness := engine.Best()
	result.Best = population[best]
	result.BestFitness = bestFitness

	if err := p.persist(ctx, result); err != nil {
		return EvolutionResult{}, err
	}
	return result, nil
}

func (p *Platform) persist(ctx context.Context, result EvolutionResult) error {
	if err := p.store.SavePopulation(ctx, result.Population); err != nil {
		return fmt.Errorf("save population: %w", err)
	}
	if err := p.store.SaveFitnessHistory(ctx, result.RunID, result.BestByGeneration); err != nil {
		return fmt.Errorf("save fitness history: %w", err)
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, result.RunID, result.GenerationDiagnostics); err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	if err := p.store.SaveLineage(ctx, result.RunID, result.Lineage); err != nil {
		return fmt.Errorf("save lineage: %w", err)
	}
	if err := p.store.SaveTopIndividuals(ctx, result.RunID, result.TopFinal); err != nil {
		return fmt.Errorf("save top individuals: %w", err)
	}
	return nil
}

func (p *Platform) mergeExistingRunHistory(ctx context.Context, current EvolutionResult, topCount int) (EvolutionResult, error) {
	if history, ok, err := p.store.GetFitnessHistory(ctx, current.RunID); err != nil {
		return EvolutionResult{}, err
	} else if ok {
		current.BestByGeneration = append(append([]float64{}, history...), current.BestByGeneration...)
	}

	if diagnostics, ok, err := p.store.GetGenerationDiagnostics(ctx, current.RunID); err != nil {
		return EvolutionResult{}, err
	} else if ok {
		prefix := make([]float64, 0, len(diagnostics))
		for _, d := range diagnostics {
			prefix = append(prefix, float64(d.MeanFitness))
		}
		current.MeanByGeneration = append(prefix, current.MeanByGeneration...)
		current.GenerationDiagnostics = append(diagnostics, current.GenerationDiagnostics...)
	}

	if lineage, ok, err := p.store.GetLineage(ctx, current.RunID); err != nil {
		return EvolutionResult{}, err
	} else if ok {
		current.Lineage = append(lineage, current.Lineage...)
	}

	if top, ok, err := p.store.GetTopIndividuals(ctx, current.RunID); err != nil {
		return EvolutionResult{}, err
	} else if ok && len(top) > 0 {
		merged := make([]model.TopIndividualRecord, 0, len(top)+len(current.TopFinal))
		merged = append(merged, current.TopFinal...)
		merged = append(merged, top...)
		current.TopFinal = rerank(merged, topCount)
	}

	return current, nil
}

func (p *Platform) registerRun(runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = struct{}{}
	return nil
}

func (p *Platform) unregisterRun(runID string) {
	p.mu.Lock()
	delete(p.runs, runID)
	p.mu.Unlock()
}

func offsetReport(report evo.GenerationReport, offset int) evo.GenerationReport {
	if offset == 0 {
		return report
	}
	report.Generation += offset
	lineage := make([]evo.LineageEntry, len(report.Lineage))
	for i, entry := range report.Lineage {
		entry.Generation += offset
		lineage[i] = entry
	}
	report.Lineage = lineage
	return report
}

// IndividualRecord renders s in its persisted form.
func IndividualRecord(provider algebra.Provider, index int, s algebra.Structure, fitness float64) model.IndividualRecord {
	return model.IndividualRecord{
		Index:       index,
		Generators:  algebra.FormatGenerators(s.Generators()),
		Order:       s.Order().String(),
		Degree:      s.Degree(),
		Fitness:     model.Score(fitness),
		Description: provider.Describe(s),
	}
}

func individualRecords(provider algebra.Provider, population []algebra.Structure, fitness []float64) []model.IndividualRecord {
	out := make([]model.IndividualRecord, 0, len(population))
	for i, individual := range population {
		out = append(out, IndividualRecord(provider, i, individual, fitness[i]))
	}
	return out
}

// topIndividuals ranks by fitness, lower index first on ties, and keeps
// the first occurrence of each generating set.
func topIndividuals(provider algebra.Provider, individuals []model.IndividualRecord, count int) []model.TopIndividualRecord {
	ranked := make([]model.TopIndividualRecord, 0, len(individuals))
	for _, individual := range individuals {
		ranked = append(ranked, model.TopIndividualRecord{Individual: individual})
	}
	ranked = rerank(ranked, count)

	for i := range ranked {
		gens, err := algebra.ParseGenerators(ranked[i].Individual.Generators)
		if err != nil {
			continue
		}
		s, err := provider.Build(gens)
		if err != nil {
			continue
		}
		if classes, err := provider.ConjugacyClassCount(s); err == nil {
			ranked[i].Classes = classes
		}
		if abelian, err := provider.IsAbelian(s); err == nil {
			ranked[i].Abelian = abelian
		}
	}
	return ranked
}

func rerank(items []model.TopIndividualRecord, count int) []model.TopIndividualRecord {
	sorted := append([]model.TopIndividualRecord(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Individual.Fitness > sorted[j].Individual.Fitness
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]model.TopIndividualRecord, 0, count)
	for _, item := range sorted {
		key := strings.Join(item.Individual.Generators, " ")
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		item.Rank = len(out) + 1
		out = append(out, item)
		if len(out) == count {
			break
		}
	}
	return out
}

func stopSupportModules(ctx context.Context, modules []SupportModule) {
	for i := len(modules) - 1; i >= 0; i-- {
		_ = modules[i].Stop(ctx)
	}
}
