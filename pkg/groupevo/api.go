package groupevo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"groupevo/internal/algebra"
	"groupevo/internal/evo"
	"groupevo/internal/fitness"
	"groupevo/internal/model"
	"groupevo/internal/perm"
	"groupevo/internal/platform"
	"groupevo/internal/stats"
	"groupevo/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "groupevo.db"

	// createdAtLayout is fixed width so index entries sort lexically.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Options struct {
	StoreKind      string
	DBPath         string
	RunsDir        string
	ExportsDir     string
	Logger         *slog.Logger
	SupportModules []platform.SupportModule
}

type Client struct {
	store    storage.Store
	platform *platform.Platform
	logger   *slog.Logger
	modules  []platform.SupportModule

	runsDir    string
	exportsDir string
}

type RunRequest struct {
	// RunID defaults to a new uuid.
	RunID string
	// ContinueRunID resumes the stored population of an earlier run; the
	// run keeps its id and its history is extended.
	ContinueRunID string

	Generations    int
	Seed           int64
	Workers        int
	Selection      string
	Stride         uint64
	TournamentSize int
	Identifier     string
	Rates          *evo.Rates
	AddStrategies  map[string]float64

	TargetClasses     int
	RequireNonAbelian bool
	Forbidden         []string
	MaxDegree         int

	RandomSeeds       int
	SeedMinDegree     int
	SeedMaxDegree     int
	SeedMaxGenerators int
	NamedSeeds        []string

	MaxEnumeration    int
	IsomorphismBudget int
	TopCount          int

	Observer evo.Observer
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Generation       int
	PopulationSize   int
	BestByGeneration []float64
	FinalBestFitness float64
	BestGenerators   []string
	BestOrder        string
	Classes          int
	Abelian          bool
	// IsomorphicTo reports, per forbidden group name, whether the best
	// individual is isomorphic to it.
	IsomorphicTo map[string]bool
	Description  string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	Generations      int
	TargetClasses    int
	FinalBestFitness float64
	BestOrder        string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// QueryRequest selects a stored run by id or the most recent one.
type QueryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DescribeRequest struct {
	Name       string
	Generators []string
}

type GroupDescription struct {
	Generators  []string
	Order       string
	Degree      int
	Classes     int
	Abelian     bool
	Description string
}

// DefaultRunRequest searches for a non-abelian group with 15 conjugacy
// classes that is not D27, from 100 random groups plus small cyclic and
// alternating groups.
func DefaultRunRequest() RunRequest {
	rates := evo.DefaultRates()
	return RunRequest{
		Generations:       10,
		Workers:           4,
		Selection:         "stride",
		Identifier:        "order",
		Rates:             &rates,
		TargetClasses:     15,
		RequireNonAbelian: true,
		Forbidden:         []string{"D27"},
		MaxDegree:         32,
		RandomSeeds:       100,
		SeedMinDegree:     4,
		SeedMaxDegree:     7,
		SeedMaxGenerators: 3,
		NamedSeeds:        []string{"C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9", "A3", "A4"},
		TopCount:          5,
	}
}

func NewRunID() string {
	return uuid.NewString()
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		modules:    opts.SupportModules,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

// Close stops support modules and closes the store.
func (c *Client) Close() error {
	var stopErr error
	if c.platform != nil {
		stopErr = c.platform.Stop(context.Background())
		c.platform = nil
	}
	return errors.Join(stopErr, storage.CloseIfSupported(c.store))
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePlatform(ctx)
	return err
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Generations <= 0 {
		req.Generations = 10
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Selection == "" {
		req.Selection = "stride"
	}
	if req.Rates == nil {
		rates := evo.DefaultRates()
		req.Rates = &rates
	}
	if req.TargetClasses <= 0 {
		req.TargetClasses = 15
	}
	if req.SeedMinDegree <= 0 {
		req.SeedMinDegree = 4
	}
	if req.SeedMaxDegree <= 0 {
		req.SeedMaxDegree = 7
	}
	if req.SeedMaxGenerators <= 0 {
		req.SeedMaxGenerators = 3
	}
	if req.MaxEnumeration <= 0 {
		req.MaxEnumeration = perm.DefaultMaxEnumeration
	}
	if req.IsomorphismBudget <= 0 {
		req.IsomorphismBudget = perm.DefaultIsomorphismBudget
	}
	if req.TopCount <= 0 {
		req.TopCount = 5
	}
	if req.RandomSeeds < 0 {
		return RunSummary{}, errors.New("random seed count must be >= 0")
	}
	if req.SeedMinDegree > req.SeedMaxDegree {
		return RunSummary{}, fmt.Errorf("seed degree range is empty: %d..%d", req.SeedMinDegree, req.SeedMaxDegree)
	}
	if err := req.Rates.Validate(); err != nil {
		return RunSummary{}, err
	}
	selector, err := selectionFromName(req.Selection, req.TournamentSize)
	if err != nil {
		return RunSummary{}, err
	}
	identifier, err := evo.IdentifierFromName(req.Identifier)
	if err != nil {
		return RunSummary{}, err
	}
	addStrategies, err := addStrategiesFromWeights(req.AddStrategies)
	if err != nil {
		return RunSummary{}, err
	}

	provider := &perm.Provider{MaxEnumeration: req.MaxEnumeration, IsomorphismBudget: req.IsomorphismBudget}
	target, err := fitness.NewClassTarget(provider, req.TargetClasses, req.RequireNonAbelian, req.Forbidden)
	if err != nil {
		return RunSummary{}, err
	}
	target.MaxDegree = req.MaxDegree

	p, err := c.ensurePlatform(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	rng := rand.New(rand.NewSource(req.Seed))
	runID := req.RunID
	initialGeneration := 0
	var initial []algebra.Structure
	if req.ContinueRunID != "" {
		if req.RunID != "" && req.RunID != req.ContinueRunID {
			return RunSummary{}, errors.New("use either run id or continue run id")
		}
		runID = req.ContinueRunID
		initial, initialGeneration, err = c.loadPopulation(ctx, runID)
		if err != nil {
			return RunSummary{}, err
		}
	} else {
		if runID == "" {
			runID = NewRunID()
		}
		initial, err = seedPopulation(rng, req)
		if err != nil {
			return RunSummary{}, err
		}
	}

	c.logger.Info("run starting",
		"run_id", runID,
		"population", len(initial),
		"generations", req.Generations,
		"initial_generation", initialGeneration,
		"seed", req.Seed,
	)
	result, err := p.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:             runID,
		InitialGeneration: initialGeneration,
		Generations:       req.Generations,
		TopCount:          req.TopCount,
		Engine: evo.Config{
			Rates:         *req.Rates,
			Provider:      provider,
			Fitness:       target.Score,
			Rand:          rng,
			Selector:      selector,
			Stride:        req.Stride,
			AddStrategies: addStrategies,
			Identifier:    identifier,
			Workers:       req.Workers,
			Logger:        c.logger.With("run_id", runID),
			Observer:      req.Observer,
		},
		Initial: initial,
	})
	if err != nil {
		return RunSummary{}, err
	}

	summary := c.summarize(provider, target, req.Forbidden, result)
	stride := req.Stride
	if stride == 0 && selector == nil {
		stride = evo.DefaultStride
	}

	now := time.Now().UTC()
	createdAt := now
	if initialGeneration > 0 {
		if previous, ok, err := c.store.GetRun(ctx, runID); err != nil {
			return RunSummary{}, err
		} else if ok {
			createdAt = previous.CreatedAt
		}
	}
	record := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		CreatedAt:       createdAt,
		Seed:            req.Seed,
		PopulationSize:  len(initial),
		Generations:     result.Generation,
		Selector:        req.Selection,
		Stride:          stride,
		Rates:           ratesRecord(*req.Rates),
		TargetClasses:   req.TargetClasses,
		Forbidden:       append([]string(nil), req.Forbidden...),
		BestFitness:     model.Score(summary.FinalBestFitness),
		BestGenerators:  summary.BestGenerators,
		BestOrder:       summary.BestOrder,
		Description:     summary.Description,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:             runID,
			Seed:              req.Seed,
			PopulationSize:    len(initial),
			Generations:       result.Generation,
			Selector:          req.Selection,
			Stride:            stride,
			TournamentSize:    req.TournamentSize,
			Identifier:        identifier.Name(),
			Rates:             record.Rates,
			AddStrategies:     addStrategyWeights(addStrategies),
			TargetClasses:     req.TargetClasses,
			RequireNonAbelian: req.RequireNonAbelian,
			Forbidden:         record.Forbidden,
			MaxDegree:         req.MaxDegree,
			SeedMinDegree:     req.SeedMinDegree,
			SeedMaxDegree:     req.SeedMaxDegree,
			SeedMaxGenerators: req.SeedMaxGenerators,
			SeedRandomCount:   req.RandomSeeds,
			SeedNamed:         append([]string(nil), req.NamedSeeds...),
			Workers:           req.Workers,
			MaxEnumeration:    req.MaxEnumeration,
			IsomorphismBudget: req.IsomorphismBudget,
		},
		BestByGeneration:      result.BestByGeneration,
		MeanByGeneration:      result.MeanByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      result.BestFitness,
		TopIndividuals:        result.TopFinal,
		Lineage:               result.Lineage,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:            runID,
		PopulationSize:   len(initial),
		Generations:      result.Generation,
		Seed:             req.Seed,
		TargetClasses:    req.TargetClasses,
		FinalBestFitness: model.Score(result.BestFitness),
		BestOrder:        summary.BestOrder,
		CreatedAtUTC:     now.Format(createdAtLayout),
	}); err != nil {
		return RunSummary{}, err
	}

	summary.ArtifactsDir = filepath.Clean(runDir)
	c.logger.Info("run complete",
		"run_id", runID,
		"generation", result.Generation,
		"best_fitness", summary.FinalBestFitness,
		"best_order", summary.BestOrder,
		"classes", summary.Classes,
	)
	return summary, nil
}

func (c *Client) summarize(provider *perm.Provider, target fitness.ClassTarget, forbidden []string, result platform.EvolutionResult) RunSummary {
	best := result.Best
	summary := RunSummary{
		RunID:            result.RunID,
		Generation:       result.Generation,
		PopulationSize:   len(result.Population.Individuals),
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: result.BestFitness,
		BestGenerators:   algebra.FormatGenerators(best.Generators()),
		BestOrder:        best.Order().String(),
		Description:      provider.Describe(best),
		IsomorphicTo:     make(map[string]bool, len(forbidden)),
	}
	if g, ok := best.(*perm.Group); ok {
		small := g.SmallGenerators()
		gens := make([]string, 0, len(small))
		for _, q := range small {
			gens = append(gens, q.Descriptor().Compact())
		}
		summary.BestGenerators = gens
	}
	if classes, err := provider.ConjugacyClassCount(best); err == nil {
		summary.Classes = classes
	} else {
		c.logger.Warn("conjugacy classes unavailable", "run_id", result.RunID, "error", err)
	}
	if abelian, err := provider.IsAbelian(best); err == nil {
		summary.Abelian = abelian
	}
	for i, name := range forbidden {
		iso, err := provider.Isomorphic(best, target.Forbidden[i])
		if err != nil {
			c.logger.Warn("isomorphism check failed", "run_id", result.RunID, "group", name, "error", err)
			continue
		}
		summary.IsomorphicTo[name] = iso
	}
	return summary
}

func (c *Client) loadPopulation(ctx context.Context, runID string) ([]algebra.Structure, int, error) {
	population, ok, err := c.store.GetPopulation(ctx, runID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("population not found for run id: %s", runID)
	}
	out := make([]algebra.Structure, 0, len(population.Individuals))
	for _, individual := range population.Individuals {
		gens, err := algebra.ParseGenerators(individual.Generators)
		if err != nil {
			return nil, 0, fmt.Errorf("individual %d of run %s: %w", individual.Index, runID, err)
		}
		g, err := perm.Build(gens)
		if err != nil {
			return nil, 0, fmt.Errorf("individual %d of run %s: %w", individual.Index, runID, err)
		}
		out = append(out, g)
	}
	return out, population.Generation, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}

	// Continued runs append a newer entry under the same id.
	seen := make(map[string]struct{}, len(entries))
	out := make([]RunItem, 0, min(len(entries), req.Limit))
	for _, e := range entries {
		if len(out) == req.Limit {
			break
		}
		if _, dup := seen[e.RunID]; dup {
			continue
		}
		seen[e.RunID] = struct{}{}
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			TargetClasses:    e.TargetClasses,
			FinalBestFitness: float64(e.FinalBestFitness),
			BestOrder:        e.BestOrder,
		})
	}
	return out, nil
}

// RunRecord returns the stored record of one run.
func (c *Client) RunRecord(ctx context.Context, req QueryRequest) (model.RunRecord, error) {
	runID, err := c.resolveRunID(req, "run record")
	if err != nil {
		return model.RunRecord{}, err
	}
	if _, err := c.ensurePlatform(ctx); err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(QueryRequest{RunID: req.RunID, Latest: req.Latest}, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Lineage(ctx context.Context, req QueryRequest) ([]model.LineageRecord, error) {
	runID, err := c.resolveRunID(req, "lineage")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePlatform(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	return limit(lineage, req.Limit), nil
}

func (c *Client) FitnessHistory(ctx context.Context, req QueryRequest) ([]float64, error) {
	runID, err := c.resolveRunID(req, "fitness history")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePlatform(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	return limit(history, req.Limit), nil
}

func (c *Client) Diagnostics(ctx context.Context, req QueryRequest) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(req, "diagnostics")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePlatform(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return limit(diagnostics, req.Limit), nil
}

func (c *Client) TopIndividuals(ctx context.Context, req QueryRequest) ([]model.TopIndividualRecord, error) {
	runID, err := c.resolveRunID(req, "top individuals")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePlatform(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopIndividuals(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top individuals not found for run id: %s", runID)
	}
	return limit(top, req.Limit), nil
}

// Describe resolves a named group ("S4", "D27") or a generating set and
// reports its invariants.
func (c *Client) Describe(req DescribeRequest) (GroupDescription, error) {
	if (req.Name == "") == (len(req.Generators) == 0) {
		return GroupDescription{}, errors.New("describe requires exactly one of name or generators")
	}
	var g *perm.Group
	if req.Name != "" {
		named, err := perm.ByName(req.Name)
		if err != nil {
			return GroupDescription{}, err
		}
		g = named
	} else {
		gens, err := algebra.ParseGenerators(req.Generators)
		if err != nil {
			return GroupDescription{}, err
		}
		built, err := perm.Build(gens)
		if err != nil {
			return GroupDescription{}, err
		}
		g = built
	}

	provider := perm.NewProvider()
	out := GroupDescription{
		Generators:  algebra.FormatGenerators(g.Generators()),
		Order:       g.Order().String(),
		Degree:      g.Degree(),
		Abelian:     g.IsAbelian(),
		Description: provider.Describe(g),
	}
	classes, err := provider.ConjugacyClassCount(g)
	if err != nil && !errors.Is(err, algebra.ErrTooLarge) {
		return GroupDescription{}, err
	}
	out.Classes = classes
	return out, nil
}

func (c *Client) resolveRunID(req QueryRequest, what string) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if req.Latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if req.RunID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return req.RunID, nil
}

func (c *Client) ensurePlatform(ctx context.Context) (*platform.Platform, error) {
	if c.platform != nil {
		return c.platform, nil
	}
	p := platform.NewPlatform(platform.Config{Store: c.store, SupportModules: c.modules})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.platform = p
	return c.platform, nil
}

// seedPopulation draws the random groups first, then appends the named
// groups in order.
func seedPopulation(rng *rand.Rand, req RunRequest) ([]algebra.Structure, error) {
	out := make([]algebra.Structure, 0, req.RandomSeeds+len(req.NamedSeeds))
	span := req.SeedMaxDegree - req.SeedMinDegree + 1
	for i := 0; i < req.RandomSeeds; i++ {
		degree := req.SeedMinDegree + rng.Intn(span)
		out = append(out, perm.RandomGroup(rng, degree, req.SeedMaxGenerators))
	}
	for _, name := range req.NamedSeeds {
		g, err := perm.ByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if len(out) == 0 {
		return nil, errors.New("seed population is empty")
	}
	return out, nil
}

func selectionFromName(name string, tournamentSize int) (evo.Selector, error) {
	switch name {
	case "stride":
		return nil, nil
	case "tournament":
		return evo.TournamentSelector{Size: tournamentSize}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}

// addStrategiesFromWeights orders the table by strategy so runs are
// reproducible regardless of map iteration order.
func addStrategiesFromWeights(weights map[string]float64) ([]evo.WeightedAddStrategy, error) {
	if len(weights) == 0 {
		return evo.DefaultAddStrategies(), nil
	}
	out := make([]evo.WeightedAddStrategy, 0, len(weights))
	for name, weight := range weights {
		strategy, err := evo.AddStrategyFromName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, evo.WeightedAddStrategy{Strategy: strategy, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Strategy < out[j].Strategy
	})
	return out, nil
}

func addStrategyWeights(table []evo.WeightedAddStrategy) map[string]int {
	out := make(map[string]int, len(table))
	for _, row := range table {
		out[row.Strategy.String()] = int(row.Weight * 1000)
	}
	return out
}

func ratesRecord(r evo.Rates) model.RatesRecord {
	return model.RatesRecord{
		GeneratorCrossover:     r.GeneratorCrossover,
		DirectProductCrossover: r.DirectProductCrossover,
		DropGenerator:          r.DropGenerator,
		AddGenerator:           r.AddGenerator,
	}
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return append([]T(nil), items...)
}
