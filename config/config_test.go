package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Simulation.ParticleCount != 100 {
		t.Errorf("particle_count: got %d, want 100", cfg.Simulation.ParticleCount)
	}
	if cfg.Simulation.ParticleTypes != 3 {
		t.Errorf("particle_types: got %d, want 3", cfg.Simulation.ParticleTypes)
	}
	if cfg.Grid.Boundary != BoundaryBounce {
		t.Errorf("boundary: got %q, want %q", cfg.Grid.Boundary, BoundaryBounce)
	}
	if cfg.Derived.MinR != 15 {
		t.Errorf("MinR: got %v, want 15", cfg.Derived.MinR)
	}
	if cfg.Derived.TicksPerEpoch != 3750 {
		t.Errorf("TicksPerEpoch: got %d, want 3750", cfg.Derived.TicksPerEpoch)
	}
	if cfg.Derived.Extent.X() != 400 {
		t.Errorf("Extent.X: got %v, want 400", cfg.Derived.Extent.X())
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	override := []byte("grid:\n  boundary: teleport\ngenetics:\n  elite_ratio: 0.1\n")
	if err := os.WriteFile(path, override, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load override: %v", err)
	}

	if !cfg.Derived.Teleport {
		t.Error("expected teleport boundary after override")
	}
	if cfg.Genetics.EliteRatio != 0.1 {
		t.Errorf("elite_ratio: got %v, want 0.1", cfg.Genetics.EliteRatio)
	}
	// Fields absent from the override keep their defaults
	if cfg.Genetics.MutationRate != 0.1 {
		t.Errorf("mutation_rate: got %v, want default 0.1", cfg.Genetics.MutationRate)
	}
	if cfg.Grid.Width != 400 {
		t.Errorf("grid width: got %v, want default 400", cfg.Grid.Width)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero types", "simulation:\n  particle_types: 0\n"},
		{"bad boundary", "grid:\n  boundary: wrap\n"},
		{"elite ratio above one", "genetics:\n  elite_ratio: 1.5\n"},
		{"negative extent", "grid:\n  depth: -1\n"},
		{"unknown executor", "simulation:\n  executor: tpu\n"},
		{"unknown codec", "genetics:\n  codec: bitstring\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Load(%q) error = %v, want ErrInvalid", tt.yaml, err)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Simulation.SimulationCount = 7

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if loaded.Simulation.SimulationCount != 7 {
		t.Errorf("simulation_count: got %d, want 7", loaded.Simulation.SimulationCount)
	}
}
