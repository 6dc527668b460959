package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/plife/genome"
)

// CheckpointVersion is incremented when the format changes.
const CheckpointVersion = 1

// Checkpoint holds the genomes of a run at an epoch boundary, enough to
// resume evolution.
type Checkpoint struct {
	Version int   `json:"version"`
	RNGSeed int64 `json:"rng_seed"`
	Epoch   int   `json:"epoch"`

	Genomes []*genome.Vector `json:"genomes"`
	Scores  []float32        `json:"scores"` // last completed epoch, by population
}

// Check validates every genome in the checkpoint.
func (c *Checkpoint) Check() error {
	if c.Version > CheckpointVersion {
		return fmt.Errorf("checkpoint version %d is newer than %d", c.Version, CheckpointVersion)
	}
	if len(c.Scores) != 0 && len(c.Scores) != len(c.Genomes) {
		return fmt.Errorf("checkpoint has %d scores for %d genomes", len(c.Scores), len(c.Genomes))
	}
	for i, g := range c.Genomes {
		if g == nil {
			return fmt.Errorf("checkpoint genome %d: %w: missing", i, genome.ErrShape)
		}
		if err := g.Check(genome.MaxForce); err != nil {
			return fmt.Errorf("checkpoint genome %d: %w", i, err)
		}
	}
	return nil
}

// SaveCheckpoint writes a checkpoint to dir and returns its path.
func SaveCheckpoint(cp *Checkpoint, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("checkpoint_%04d.json", cp.Epoch))

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}

	return path, nil
}

// LoadCheckpoint reads and validates a checkpoint. Coherence is recomputed.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if err := cp.Check(); err != nil {
		return nil, err
	}
	for _, g := range cp.Genomes {
		g.Refresh()
	}

	return &cp, nil
}
