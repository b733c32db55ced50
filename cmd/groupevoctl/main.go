package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"groupevo/internal/metrics"
	"groupevo/internal/model"
	"groupevo/internal/platform"
	"groupevo/internal/stats"
	"groupevo/internal/storage"
	"groupevo/pkg/groupevo"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "groupevo.db"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "describe":
		return runDescribe(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every subcommand that opens a client.
type clientFlags struct {
	storeKind *string
	dbPath    *string
	runsDir   *string
	logLevel  *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDBPath, "sqlite database path"),
		runsDir:   fs.String("runs-dir", defaultRunsDir, "run artifacts directory"),
		logLevel:  fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f clientFlags) open(modules ...platform.SupportModule) (*groupevo.Client, error) {
	logger, err := newLogger(stderr, *f.logLevel)
	if err != nil {
		return nil, err
	}
	client, err := groupevo.New(groupevo.Options{
		StoreKind:      *f.storeKind,
		DBPath:         *f.dbPath,
		RunsDir:        *f.runsDir,
		ExportsDir:     defaultExportsDir,
		Logger:         logger,
		SupportModules: modules,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// queryFlags select a stored run.
type queryFlags struct {
	runID   *string
	latest  *bool
	limit   *int
	jsonOut *bool
}

func registerQueryFlags(fs *flag.FlagSet, what string, limit int) queryFlags {
	return queryFlags{
		runID:   fs.String("run-id", "", "run id"),
		latest:  fs.Bool("latest", false, fmt.Sprintf("show %s for the most recent run from run index", what)),
		limit:   fs.Int("limit", limit, "max rows to print (<=0 for all)"),
		jsonOut: fs.Bool("json", false, fmt.Sprintf("emit %s as JSON", what)),
	}
}

func (q queryFlags) request(command string) (groupevo.QueryRequest, error) {
	if *q.runID != "" && *q.latest {
		return groupevo.QueryRequest{}, errors.New("use either --run-id or --latest, not both")
	}
	if *q.runID == "" && !*q.latest {
		return groupevo.QueryRequest{}, fmt.Errorf("%s requires --run-id or --latest", command)
	}
	limit := *q.limit
	if limit < 0 {
		limit = 0
	}
	return groupevo.QueryRequest{RunID: *q.runID, Latest: *q.latest, Limit: limit}, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := registerClientFlags(fs)
	configPath := fs.String("config", "", "optional run config JSON path")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address during the run")
	defaults := groupevo.DefaultRunRequest()
	runID := fs.String("run-id", "", "explicit run id (optional)")
	continueRunID := fs.String("continue-run-id", "", "continue from the stored population of this run")
	generations := fs.Int("gens", defaults.Generations, "generation count")
	seed := fs.Int64("seed", defaults.Seed, "rng seed")
	workers := fs.Int("workers", defaults.Workers, "fitness worker count")
	selection := fs.String("selection", defaults.Selection, "parent selection: stride|tournament")
	stride := fs.Uint64("stride", 0, "stride selector step (0 uses the default prime)")
	tournamentSize := fs.Int("tournament-size", 0, "tournament size for selection=tournament")
	identifier := fs.String("identifier", defaults.Identifier, "diversity identifier: order|shape")
	generatorCrossover := fs.Float64("generator-crossover", defaults.Rates.GeneratorCrossover, "generator splice crossover rate")
	directProduct := fs.Float64("direct-product-crossover", defaults.Rates.DirectProductCrossover, "direct product crossover rate")
	dropGenerator := fs.Float64("drop-generator", defaults.Rates.DropGenerator, "drop generator mutation rate")
	addGenerator := fs.Float64("add-generator", defaults.Rates.AddGenerator, "add generator mutation rate")
	addWeights := fs.String("add-weights", "", "add strategy weights, e.g. random_generator=1,commutator_power=2")
	classes := fs.Int("classes", defaults.TargetClasses, "target conjugacy class count")
	nonAbelian := fs.Bool("non-abelian", defaults.RequireNonAbelian, "score abelian groups zero")
	forbidden := fs.String("forbidden", strings.Join(defaults.Forbidden, ","), "comma separated groups scored zero")
	maxDegree := fs.Int("max-degree", defaults.MaxDegree, "score groups above this degree -Inf (0 disables)")
	randomSeeds := fs.Int("random-seeds", defaults.RandomSeeds, "random groups in the initial population")
	seedMinDegree := fs.Int("seed-min-degree", defaults.SeedMinDegree, "smallest degree of a random seed group")
	seedMaxDegree := fs.Int("seed-max-degree", defaults.SeedMaxDegree, "largest degree of a random seed group")
	seedMaxGenerators := fs.Int("seed-max-generators", defaults.SeedMaxGenerators, "max generators of a random seed group")
	namedSeeds := fs.String("named-seeds", strings.Join(defaults.NamedSeeds, ","), "comma separated named groups in the initial population")
	maxEnumeration := fs.Int("max-enumeration", 0, "largest group order enumerated for invariants (0 uses the default)")
	isoBudget := fs.Int("isomorphism-budget", 0, "isomorphism search budget (0 uses the default)")
	topCount := fs.Int("top", defaults.TopCount, "top individuals kept per run")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	err = overrideFromFlags(&req, setFlags, map[string]any{
		"run-id":                   *runID,
		"continue-run-id":          *continueRunID,
		"gens":                     *generations,
		"seed":                     *seed,
		"workers":                  *workers,
		"selection":                *selection,
		"stride":                   *stride,
		"tournament-size":          *tournamentSize,
		"identifier":               *identifier,
		"generator-crossover":      *generatorCrossover,
		"direct-product-crossover": *directProduct,
		"drop-generator":           *dropGenerator,
		"add-generator":            *addGenerator,
		"add-weights":              *addWeights,
		"classes":                  *classes,
		"non-abelian":              *nonAbelian,
		"forbidden":                *forbidden,
		"max-degree":               *maxDegree,
		"random-seeds":             *randomSeeds,
		"seed-min-degree":          *seedMinDegree,
		"seed-max-degree":          *seedMaxDegree,
		"seed-max-generators":      *seedMaxGenerators,
		"named-seeds":              *namedSeeds,
		"max-enumeration":          *maxEnumeration,
		"isomorphism-budget":       *isoBudget,
		"top":                      *topCount,
	})
	if err != nil {
		return err
	}

	var modules []platform.SupportModule
	if *metricsAddr != "" {
		if req.ContinueRunID != "" {
			req.RunID = req.ContinueRunID
		}
		if req.RunID == "" {
			req.RunID = groupevo.NewRunID()
		}
		collector := metrics.NewCollector(req.RunID)
		logger, err := newLogger(stderr, *common.logLevel)
		if err != nil {
			return err
		}
		modules = append(modules, metrics.NewServer(*metricsAddr, collector, logger))
		req.Observer = collector
	}

	client, err := common.open(modules...)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runSummaryJSON(summary))
	}

	fmt.Fprintf(stdout, "run completed run_id=%s population=%s gens=%d seed=%d\n",
		summary.RunID, humanize.Comma(int64(summary.PopulationSize)), summary.Generation, req.Seed)
	first := summary.Generation - len(summary.BestByGeneration) + 1
	for i, best := range summary.BestByGeneration {
		fmt.Fprintf(stdout, "generation=%d best_fitness=%.6f\n", first+i, best)
	}
	fmt.Fprintf(stdout, "final_best_fitness=%.6f\n", summary.FinalBestFitness)
	fmt.Fprintf(stdout, "best_generators=%s\n", strings.Join(summary.BestGenerators, " "))
	fmt.Fprintf(stdout, "best_order=%s classes=%d abelian=%t\n", formatOrder(summary.BestOrder), summary.Classes, summary.Abelian)
	for _, name := range req.Forbidden {
		if iso, ok := summary.IsomorphicTo[name]; ok {
			fmt.Fprintf(stdout, "isomorphic_to_%s=%t\n", name, iso)
		}
	}
	if summary.Description != "" {
		fmt.Fprintf(stdout, "description=%s\n", summary.Description)
	}
	fmt.Fprintf(stdout, "artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := registerClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, groupevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID            string      `json:"run_id"`
			CreatedAtUTC     string      `json:"created_at_utc"`
			Seed             int64       `json:"seed"`
			PopulationSize   int         `json:"population_size"`
			Generations      int         `json:"generations"`
			TargetClasses    int         `json:"target_classes"`
			FinalBestFitness model.Score `json:"final_best_fitness"`
			BestOrder        string      `json:"best_order"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem{
				RunID:            r.RunID,
				CreatedAtUTC:     r.CreatedAtUTC,
				Seed:             r.Seed,
				PopulationSize:   r.Population,
				Generations:      r.Generations,
				TargetClasses:    r.TargetClasses,
				FinalBestFitness: model.Score(r.FinalBestFitness),
				BestOrder:        r.BestOrder,
			})
		}
		return writeJSON(items)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s seed=%d pop=%d gens=%d classes=%d final_best_fitness=%.6f best_order=%s\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Seed,
			r.Population,
			r.Generations,
			r.TargetClasses,
			r.FinalBestFitness,
			formatOrder(r.BestOrder),
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	common := registerClientFlags(fs)
	query := registerQueryFlags(fs, "fitness history", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := query.request("fitness")
	if err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, req)
	if err != nil {
		return err
	}
	if *query.jsonOut {
		return writeJSON(model.Scores(history))
	}
	if len(history) == 0 {
		fmt.Fprintln(stdout, "no fitness history")
		return nil
	}
	for i, best := range history {
		fmt.Fprintf(stdout, "generation=%d best_fitness=%.6f\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	common := registerClientFlags(fs)
	query := registerQueryFlags(fs, "diagnostics", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := query.request("diagnostics")
	if err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, req)
	if err != nil {
		return err
	}
	if *query.jsonOut {
		return writeJSON(diagnostics)
	}
	if len(diagnostics) == 0 {
		fmt.Fprintln(stdout, "no diagnostics")
		return nil
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "generation=%d best=%.6f mean=%.6f stddev=%.6f min=%.6f finite=%d diversity=%d crossovers=[%s] mutations=[%s]\n",
			d.Generation,
			float64(d.BestFitness),
			float64(d.MeanFitness),
			float64(d.StdDevFitness),
			float64(d.MinFitness),
			d.FiniteCount,
			d.Diversity,
			stats.FormatCounts(d.Crossovers),
			stats.FormatCounts(d.Mutations),
		)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	common := registerClientFlags(fs)
	query := registerQueryFlags(fs, "lineage", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := query.request("lineage")
	if err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, req)
	if err != nil {
		return err
	}
	if *query.jsonOut {
		return writeJSON(lineage)
	}
	if len(lineage) == 0 {
		fmt.Fprintln(stdout, "no lineage")
		return nil
	}
	for _, rec := range lineage {
		fmt.Fprintf(stdout, "gen=%d index=%d parents=%d,%d crossover=%s mutation=%s\n",
			rec.Generation,
			rec.Index,
			rec.Parents[0],
			rec.Parents[1],
			rec.Crossover,
			rec.Mutation,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	common := registerClientFlags(fs)
	query := registerQueryFlags(fs, "top individuals", 5)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := query.request("top")
	if err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopIndividuals(ctx, req)
	if err != nil {
		return err
	}
	if *query.jsonOut {
		return writeJSON(top)
	}
	if len(top) == 0 {
		fmt.Fprintln(stdout, "no top individuals")
		return nil
	}
	for _, item := range top {
		fmt.Fprintf(stdout, "rank=%d fitness=%.6f order=%s degree=%d classes=%d abelian=%t generators=%s\n",
			item.Rank,
			float64(item.Individual.Fitness),
			formatOrder(item.Individual.Order),
			item.Individual.Degree,
			item.Classes,
			item.Abelian,
			strings.Join(item.Individual.Generators, " "),
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, groupevo.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runDescribe(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	name := fs.String("name", "", "named group such as S4, D27, A5 or C12")
	jsonOut := fs.Bool("json", false, "emit description as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := groupevo.New(groupevo.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	d, err := client.Describe(groupevo.DescribeRequest{Name: *name, Generators: fs.Args()})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(d)
	}
	fmt.Fprintf(stdout, "generators=%s\n", strings.Join(d.Generators, " "))
	fmt.Fprintf(stdout, "order=%s degree=%d classes=%d abelian=%t\n", formatOrder(d.Order), d.Degree, d.Classes, d.Abelian)
	if d.Description != "" {
		fmt.Fprintf(stdout, "description=%s\n", d.Description)
	}
	return nil
}

type runSummaryOutput struct {
	RunID            string          `json:"run_id"`
	ArtifactsDir     string          `json:"artifacts_dir"`
	Generation       int             `json:"generation"`
	PopulationSize   int             `json:"population_size"`
	BestByGeneration []model.Score   `json:"best_by_generation"`
	FinalBestFitness model.Score     `json:"final_best_fitness"`
	BestGenerators   []string        `json:"best_generators"`
	BestOrder        string          `json:"best_order"`
	Classes          int             `json:"classes"`
	Abelian          bool            `json:"abelian"`
	IsomorphicTo     map[string]bool `json:"isomorphic_to,omitempty"`
	Description      string          `json:"description,omitempty"`
}

func runSummaryJSON(s groupevo.RunSummary) runSummaryOutput {
	return runSummaryOutput{
		RunID:            s.RunID,
		ArtifactsDir:     filepath.Clean(s.ArtifactsDir),
		Generation:       s.Generation,
		PopulationSize:   s.PopulationSize,
		BestByGeneration: model.Scores(s.BestByGeneration),
		FinalBestFitness: model.Score(s.FinalBestFitness),
		BestGenerators:   s.BestGenerators,
		BestOrder:        s.BestOrder,
		Classes:          s.Classes,
		Abelian:          s.Abelian,
		IsomorphicTo:     s.IsomorphicTo,
		Description:      s.Description,
	}
}

// newLogger writes human readable logs to a terminal and JSON otherwise.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// formatOrder groups digits of a decimal group order.
func formatOrder(order string) string {
	n, ok := new(big.Int).SetString(order, 10)
	if !ok {
		return order
	}
	return humanize.BigComma(n)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: groupevoctl <run|runs|fitness|diagnostics|lineage|top|export|describe> [flags]", msg)
}
