//go:build sqlite

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"groupevo/internal/model"
)

func TestRunCommandSQLiteSupportsQueries(t *testing.T) {
	out := captureOutput(t)
	workdir := t.TempDir()
	dbPath := filepath.Join(workdir, "groupevo.db")
	runsDir := filepath.Join(workdir, "runs")
	storeArgs := []string{"--store", "sqlite", "--db-path", dbPath, "--runs-dir", runsDir}

	args := append([]string{"run"}, storeArgs...)
	args = append(args,
		"--run-id", "sqlite-run",
		"--gens", "2",
		"--seed", "11",
		"--classes", "5",
		"--forbidden", "D4",
		"--max-degree", "12",
		"--random-seeds", "0",
		"--named-seeds", "S3,C4,D4,A4",
	)
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	out.Reset()
	if err := run(context.Background(), append([]string{"fitness", "--latest"}, storeArgs...)); err != nil {
		t.Fatalf("fitness command: %v", err)
	}
	if strings.Count(out.String(), "best_fitness=") != 2 {
		t.Fatalf("expected two fitness rows:\n%s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), append([]string{"lineage", "--run-id", "sqlite-run", "--json"}, storeArgs...)); err != nil {
		t.Fatalf("lineage command: %v", err)
	}
	var lineage []model.LineageRecord
	if err := json.Unmarshal(out.Bytes(), &lineage); err != nil {
		t.Fatalf("decode lineage: %v", err)
	}
	if len(lineage) != 8 {
		t.Fatalf("expected 8 lineage rows, got %d", len(lineage))
	}

	out.Reset()
	if err := run(context.Background(), append([]string{"diagnostics", "--latest"}, storeArgs...)); err != nil {
		t.Fatalf("diagnostics command: %v", err)
	}
	if !strings.Contains(out.String(), "generation=2 best=") {
		t.Fatalf("expected second generation diagnostics:\n%s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), append([]string{"top", "--latest", "--limit", "1"}, storeArgs...)); err != nil {
		t.Fatalf("top command: %v", err)
	}
	if !strings.HasPrefix(out.String(), "rank=1 ") || strings.Count(out.String(), "rank=") != 1 {
		t.Fatalf("unexpected top output:\n%s", out.String())
	}

	out.Reset()
	continueArgs := append([]string{"run", "--continue-run-id", "sqlite-run", "--gens", "1", "--classes", "5", "--forbidden", "D4", "--max-degree", "12"}, storeArgs...)
	if err := run(context.Background(), continueArgs); err != nil {
		t.Fatalf("continue run: %v", err)
	}
	if !strings.Contains(out.String(), "generation=3 best_fitness=") {
		t.Fatalf("expected continued generation numbering:\n%s", out.String())
	}
}
