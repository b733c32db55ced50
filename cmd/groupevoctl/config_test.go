package main

import (
	"os"
	"path/filepath"
	"testing"

	"groupevo/internal/evo"
)

func TestLoadRunRequestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_config.json")
	payload := `{
		"seed": 77,
		"workers": 3,
		"selection": "tournament",
		"tournament_size": 4,
		"stride": 9223372036854775783,
		"identifier": "shape",
		"rates": {"generator_crossover": 0.5, "add_generator": 0.2},
		"add_strategies": {"product_power": 3},
		"target_classes": 12,
		"require_non_abelian": false,
		"forbidden": ["D6", "A5"],
		"seeds": {"random": 10, "min_degree": 5, "max_degree": 6, "max_generators": 2, "named": ["S4"]},
		"top_count": 8
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Seed != 77 || req.Workers != 3 || req.Selection != "tournament" || req.TournamentSize != 4 {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.Stride != evo.DefaultStride {
		t.Fatalf("stride lost precision: %d", req.Stride)
	}
	if req.Identifier != "shape" || req.TargetClasses != 12 || req.RequireNonAbelian || req.TopCount != 8 {
		t.Fatalf("unexpected target fields: %+v", req)
	}
	defaults := evo.DefaultRates()
	if req.Rates.GeneratorCrossover != 0.5 || req.Rates.AddGenerator != 0.2 || req.Rates.DropGenerator != defaults.DropGenerator {
		t.Fatalf("unexpected rates: %+v", *req.Rates)
	}
	if len(req.AddStrategies) != 1 || req.AddStrategies["product_power"] != 3 {
		t.Fatalf("unexpected add strategies: %+v", req.AddStrategies)
	}
	if len(req.Forbidden) != 2 || req.Forbidden[1] != "A5" {
		t.Fatalf("unexpected forbidden groups: %v", req.Forbidden)
	}
	if req.RandomSeeds != 10 || req.SeedMinDegree != 5 || req.SeedMaxDegree != 6 || req.SeedMaxGenerators != 2 {
		t.Fatalf("unexpected seed config: %+v", req)
	}
	if len(req.NamedSeeds) != 1 || req.NamedSeeds[0] != "S4" {
		t.Fatalf("unexpected named seeds: %v", req.NamedSeeds)
	}
	if req.Generations != 10 || req.MaxDegree != 32 {
		t.Fatalf("expected unset keys to keep defaults: gens=%d max_degree=%d", req.Generations, req.MaxDegree)
	}
}

func TestLoadRunRequestFromConfigRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadOrDefaultRunRequest(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected missing file error")
	}

	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"add_strategies": {"random_generator": "lots"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadRunRequestFromConfig(path); err == nil {
		t.Fatal("expected non-numeric weight error")
	}
}

func TestOverrideFromFlagsAppliesOnlySetFlags(t *testing.T) {
	req, err := loadOrDefaultRunRequest("")
	if err != nil {
		t.Fatalf("default request: %v", err)
	}
	err = overrideFromFlags(&req, map[string]bool{"gens": true, "drop-generator": true, "named-seeds": true, "add-weights": true}, map[string]any{
		"gens":           3,
		"seed":           int64(99),
		"drop-generator": 0.1,
		"add-generator":  0.9,
		"named-seeds":    "S3, ,A5",
		"add-weights":    "random_generator=1, product_power=2.5",
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if req.Generations != 3 || req.Seed != 0 {
		t.Fatalf("unexpected overrides: gens=%d seed=%d", req.Generations, req.Seed)
	}
	if req.Rates.DropGenerator != 0.1 || req.Rates.AddGenerator != evo.DefaultRates().AddGenerator {
		t.Fatalf("unexpected rates: %+v", *req.Rates)
	}
	if len(req.NamedSeeds) != 2 || req.NamedSeeds[0] != "S3" || req.NamedSeeds[1] != "A5" {
		t.Fatalf("unexpected named seeds: %v", req.NamedSeeds)
	}
	if req.AddStrategies["product_power"] != 2.5 || req.AddStrategies["random_generator"] != 1 {
		t.Fatalf("unexpected add weights: %v", req.AddStrategies)
	}
}

func TestParseWeightsRejectsMalformedItems(t *testing.T) {
	if _, err := parseWeights("random_generator"); err == nil {
		t.Fatal("expected missing weight error")
	}
	if _, err := parseWeights("random_generator=x"); err == nil {
		t.Fatal("expected invalid number error")
	}
	weights, err := parseWeights("")
	if err != nil || weights != nil {
		t.Fatalf("expected empty weights, got %v %v", weights, err)
	}
}
