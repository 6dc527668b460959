package game

import (
	"log/slog"

	"github.com/pthm-cable/plife/evolution"
	"github.com/pthm-cable/plife/genome"
	"github.com/pthm-cable/plife/telemetry"
)

// recordEpoch logs and writes the epoch's telemetry, checks for bookmarks
// and writes a checkpoint when one is due.
func (r *Run) recordEpoch(gen *evolution.Generation, scores []float32, results []Result) {
	stats := telemetry.FromGeneration(gen, scores, r.simTime, r.foodEaten)
	perfStats := r.perf.Stats()

	if r.logEpochs {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := r.output.WriteEpoch(stats); err != nil {
		slog.Error("failed to write epoch stats", "error", err)
	}
	if err := r.output.WritePerf(perfStats, gen.Epoch); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range r.bookmarks.Check(stats) {
		if r.logEpochs {
			bm.LogBookmark()
		}
		if err := r.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}

	if r.checkpointEvery > 0 && (gen.Epoch+1)%r.checkpointEvery == 0 {
		r.saveCheckpoint(gen)
	}

	if r.onEpoch != nil {
		r.onEpoch(EpochReport{Generation: gen, Stats: stats, Results: results})
	}
}

// saveCheckpoint writes the next generation's genomes, enough to resume
// from the following epoch.
func (r *Run) saveCheckpoint(gen *evolution.Generation) {
	cp := &telemetry.Checkpoint{
		Version: telemetry.CheckpointVersion,
		RNGSeed: r.seed,
		Epoch:   gen.Epoch + 1,
		Genomes: make([]*genome.Vector, len(gen.Genomes)),
	}
	for i, g := range gen.Genomes {
		cp.Genomes[i] = g.Clone()
	}
	path, err := r.output.WriteCheckpoint(cp)
	if err != nil {
		slog.Error("failed to write checkpoint", "epoch", cp.Epoch, "error", err)
		return
	}
	if path != "" {
		slog.Info("checkpoint saved", "epoch", cp.Epoch, "path", path)
	}
}
