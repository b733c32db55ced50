package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"groupevo/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	historyFile     = "fitness_history.json"
	topFile         = "top_individuals.json"
	lineageFile     = "lineage.json"
	diagnosticsFile = "generation_diagnostics.json"
	seriesFile      = "fitness_series.csv"
)

// RunConfig is the resolved configuration of a run as written to config.json.
type RunConfig struct {
	RunID             string            `json:"run_id"`
	Seed              int64             `json:"seed"`
	PopulationSize    int               `json:"population_size"`
	Generations       int               `json:"generations"`
	Selector          string            `json:"selector"`
	Stride            uint64            `json:"stride,omitempty"`
	TournamentSize    int               `json:"tournament_size,omitempty"`
	Identifier        string            `json:"identifier"`
	Rates             model.RatesRecord `json:"rates"`
	AddStrategies     map[string]int    `json:"add_strategies,omitempty"`
	TargetClasses     int               `json:"target_classes"`
	RequireNonAbelian bool              `json:"require_non_abelian"`
	Forbidden         []string          `json:"forbidden,omitempty"`
	MaxDegree         int               `json:"max_degree,omitempty"`
	SeedMinDegree     int               `json:"seed_min_degree"`
	SeedMaxDegree     int               `json:"seed_max_degree"`
	SeedMaxGenerators int               `json:"seed_max_generators"`
	SeedRandomCount   int               `json:"seed_random_count"`
	SeedNamed         []string          `json:"seed_named,omitempty"`
	Workers           int               `json:"workers"`
	MaxEnumeration    int               `json:"max_enumeration"`
	IsomorphismBudget int               `json:"isomorphism_budget"`
	StoreKind         string            `json:"store_kind,omitempty"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	MeanByGeneration      []float64                     `json:"mean_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	TopIndividuals        []model.TopIndividualRecord   `json:"top_individuals"`
	Lineage               []model.LineageRecord         `json:"lineage"`
}

type RunIndexEntry struct {
	RunID            string      `json:"run_id"`
	PopulationSize   int         `json:"population_size"`
	Generations      int         `json:"generations"`
	Seed             int64       `json:"seed"`
	TargetClasses    int         `json:"target_classes"`
	FinalBestFitness model.Score `json:"final_best_fitness"`
	BestOrder        string      `json:"best_order,omitempty"`
	CreatedAtUTC     string      `json:"created_at_utc"`
}

// FitnessHistory is the on-disk form of fitness_history.json.
type FitnessHistory struct {
	BestByGeneration []model.Score `json:"best_by_generation"`
	MeanByGeneration []model.Score `json:"mean_by_generation"`
	FinalBestFitness model.Score   `json:"final_best_fitness"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	history := FitnessHistory{
		BestByGeneration: model.Scores(artifacts.BestByGeneration),
		MeanByGeneration: model.Scores(artifacts.MeanByGeneration),
		FinalBestFitness: model.Score(artifacts.FinalBestFitness),
	}
	if err := writeJSON(filepath.Join(runDir, historyFile), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, topFile), artifacts.TopIndividuals); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lineageFile), artifacts.Lineage); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration, artifacts.MeanByGeneration); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Entries with equal
// timestamps are listed latest-appended first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	slices.SortStableFunc(entries, func(a, b RunIndexEntry) int {
		return strings.Compare(b.CreatedAtUTC, a.CreatedAtUTC)
	})
	return entries, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory into outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, historyFile, topFile, lineageFile, diagnosticsFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	seriesPath := filepath.Join(src, seriesFile)
	if _, err := os.Stat(seriesPath); err == nil {
		if err := copyFile(seriesPath, filepath.Join(dst, seriesFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadFitnessHistory(baseDir, runID string) (FitnessHistory, bool, error) {
	var history FitnessHistory
	ok, err := readJSON(filepath.Join(baseDir, runID, historyFile), &history)
	return history, ok, err
}

func ReadTopIndividuals(baseDir, runID string) ([]model.TopIndividualRecord, bool, error) {
	var top []model.TopIndividualRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, topFile), &top)
	return top, ok, err
}

// WriteFitnessSeries writes generation,best_fitness,mean_fitness rows.
// Infinite values are written as strconv renders them ("-Inf").
func WriteFitnessSeries(runDir string, best, mean []float64) error {
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness", "mean_fitness"}); err != nil {
		return err
	}
	for i, b := range best {
		m := math.Inf(-1)
		if i < len(mean) {
			m = mean[i]
		}
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(b, 'f', -1, 64),
			strconv.FormatFloat(m, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFitnessSeries returns the best column of fitness_series.csv.
func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
