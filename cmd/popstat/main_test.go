package main

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/plife/archive"
	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/genome"
)

func newStore(t *testing.T) archive.Store {
	t.Helper()
	ctx := context.Background()
	store, err := archive.Open(ctx, archive.BackendJSON, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"alpha", "beta"} {
		g := genome.Random(3, rand.New(rand.NewSource(int64(i))))
		p := &archive.SavedPopulation{
			Name:      name,
			Timestamp: "2025-01-02_03-04-05",
			Genotype:  *g,
			Score:     []float32{10, 200}[i],
			BoundaryMode: "bounce",
			GeneticMetrics: archive.GeneticMetrics{
				CoherenceScore: g.Coherence,
				PopulationSize: 4,
			},
		}
		p.RecordParams(config.Default())
		if err := store.Save(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestRunCommands(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, store, []string{"list"}, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "beta") {
		t.Errorf("list output:\n%s", out.String())
	}

	out.Reset()
	if err := run(ctx, store, []string{"show", "alpha"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"alpha"`) {
		t.Errorf("show output:\n%s", out.String())
	}

	path := filepath.Join(t.TempDir(), "stats.csv")
	out.Reset()
	if err := run(ctx, store, []string{"export", path}, &out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(strings.TrimSpace(string(data)), "\n"); got != 2 {
		t.Errorf("export has %d data rows, want 2", got)
	}

	if err := run(ctx, store, []string{"delete", "alpha"}, &out); err != nil {
		t.Fatal(err)
	}
	if err := run(ctx, store, []string{"show", "alpha"}, &out); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("show after delete: %v, want ErrNotFound", err)
	}
}

func TestRunUsage(t *testing.T) {
	store := newStore(t)
	tests := [][]string{
		nil,
		{"frobnicate"},
		{"show"},
		{"list", "extra"},
		{"export"},
	}
	for _, args := range tests {
		if err := run(context.Background(), store, args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Errorf("run(%q) = %v, want usage error", args, err)
		}
	}
}
