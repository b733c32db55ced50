package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"groupevo/internal/evo"
	"groupevo/pkg/groupevo"
)

// loadRunRequestFromConfig reads a JSON run config on top of
// groupevo.DefaultRunRequest. Unknown keys are ignored.
func loadRunRequestFromConfig(path string) (groupevo.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return groupevo.RunRequest{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return groupevo.RunRequest{}, err
	}

	req := groupevo.DefaultRunRequest()
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["continue_run_id"]); ok {
		req.ContinueRunID = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asUint64(raw["stride"]); ok {
		req.Stride = v
	}
	if v, ok := asInt(raw["tournament_size"]); ok {
		req.TournamentSize = v
	}
	if v, ok := asString(raw["identifier"]); ok {
		req.Identifier = v
	}
	if rates, ok := raw["rates"].(map[string]any); ok {
		r := *req.Rates
		if v, ok := asFloat64(rates["generator_crossover"]); ok {
			r.GeneratorCrossover = v
		}
		if v, ok := asFloat64(rates["direct_product_crossover"]); ok {
			r.DirectProductCrossover = v
		}
		if v, ok := asFloat64(rates["drop_generator"]); ok {
			r.DropGenerator = v
		}
		if v, ok := asFloat64(rates["add_generator"]); ok {
			r.AddGenerator = v
		}
		req.Rates = &r
	}
	if weights, ok := raw["add_strategies"].(map[string]any); ok {
		req.AddStrategies = make(map[string]float64, len(weights))
		for name, w := range weights {
			v, ok := asFloat64(w)
			if !ok {
				return groupevo.RunRequest{}, fmt.Errorf("add strategy %s weight must be a number", name)
			}
			req.AddStrategies[name] = v
		}
	}
	if v, ok := asInt(raw["target_classes"]); ok {
		req.TargetClasses = v
	}
	if v, ok := asBool(raw["require_non_abelian"]); ok {
		req.RequireNonAbelian = v
	}
	if v, ok := asStringSlice(raw["forbidden"]); ok {
		req.Forbidden = v
	}
	if v, ok := asInt(raw["max_degree"]); ok {
		req.MaxDegree = v
	}
	if seeds, ok := raw["seeds"].(map[string]any); ok {
		if v, ok := asInt(seeds["random"]); ok {
			req.RandomSeeds = v
		}
		if v, ok := asInt(seeds["min_degree"]); ok {
			req.SeedMinDegree = v
		}
		if v, ok := asInt(seeds["max_degree"]); ok {
			req.SeedMaxDegree = v
		}
		if v, ok := asInt(seeds["max_generators"]); ok {
			req.SeedMaxGenerators = v
		}
		if v, ok := asStringSlice(seeds["named"]); ok {
			req.NamedSeeds = v
		}
	}
	if v, ok := asInt(raw["max_enumeration"]); ok {
		req.MaxEnumeration = v
	}
	if v, ok := asInt(raw["isomorphism_budget"]); ok {
		req.IsomorphismBudget = v
	}
	if v, ok := asInt(raw["top_count"]); ok {
		req.TopCount = v
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (groupevo.RunRequest, error) {
	if configPath == "" {
		return groupevo.DefaultRunRequest(), nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return groupevo.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

// overrideFromFlags applies only the flags the user set explicitly.
func overrideFromFlags(req *groupevo.RunRequest, set map[string]bool, flagValue map[string]any) error {
	rates := evo.DefaultRates()
	if req.Rates != nil {
		rates = *req.Rates
	}
	for name, v := range flagValue {
		if !set[name] {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "continue-run-id":
			req.ContinueRunID = v.(string)
		case "gens":
			req.Generations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "selection":
			req.Selection = v.(string)
		case "stride":
			req.Stride = v.(uint64)
		case "tournament-size":
			req.TournamentSize = v.(int)
		case "identifier":
			req.Identifier = v.(string)
		case "generator-crossover":
			rates.GeneratorCrossover = v.(float64)
		case "direct-product-crossover":
			rates.DirectProductCrossover = v.(float64)
		case "drop-generator":
			rates.DropGenerator = v.(float64)
		case "add-generator":
			rates.AddGenerator = v.(float64)
		case "add-weights":
			weights, err := parseWeights(v.(string))
			if err != nil {
				return err
			}
			req.AddStrategies = weights
		case "classes":
			req.TargetClasses = v.(int)
		case "non-abelian":
			req.RequireNonAbelian = v.(bool)
		case "forbidden":
			req.Forbidden = parseList(v.(string))
		case "max-degree":
			req.MaxDegree = v.(int)
		case "random-seeds":
			req.RandomSeeds = v.(int)
		case "seed-min-degree":
			req.SeedMinDegree = v.(int)
		case "seed-max-degree":
			req.SeedMaxDegree = v.(int)
		case "seed-max-generators":
			req.SeedMaxGenerators = v.(int)
		case "named-seeds":
			req.NamedSeeds = parseList(v.(string))
		case "max-enumeration":
			req.MaxEnumeration = v.(int)
		case "isomorphism-budget":
			req.IsomorphismBudget = v.(int)
		case "top":
			req.TopCount = v.(int)
		}
	}
	req.Rates = &rates
	return nil
}

// parseList splits a comma separated flag value, dropping blanks.
func parseList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseWeights parses "name=weight,name=weight".
func parseWeights(s string) (map[string]float64, error) {
	items := parseList(s)
	if len(items) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid add weight %q: want name=weight", item)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid add weight %q: %w", item, err)
		}
		out[strings.TrimSpace(name)] = w
	}
	return out, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	n, ok := asInt64(v)
	return int(n), ok
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	x, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(x.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func asStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
