package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pthm-cable/plife/archive"
	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/game"
	"github.com/pthm-cable/plife/genome"
	"github.com/pthm-cable/plife/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = checkpoint seed or time-based)")
	epochs := flag.Int("epochs", 0, "Stop after N epochs (0 = until interrupted)")
	executor := flag.String("executor", "", "Force executor: cpu | gpu (empty = use config)")
	speed := flag.String("speed", "very_fast", "Ticks per frame: normal | fast | very_fast")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, plots and checkpoints")
	archivePath := flag.String("archive", "", "Population archive path (empty = use config)")
	archiveBackend := flag.String("archive-backend", "", "Archive backend: memory | json | sqlite (empty = use config)")
	saveBest := flag.String("save-best", "", "Archive the best population under this name on exit")
	load := flag.String("load", "", "Comma-separated archive names to seed the initial genomes")
	checkpoint := flag.String("checkpoint", "", "Resume genomes from a checkpoint file")
	checkpointEvery := flag.Int("checkpoint-every", 0, "Write a checkpoint every N epochs (needs -output-dir)")
	hallPath := flag.String("hall", "", "Load a hall of fame JSON file")
	logEpochs := flag.Bool("log-epochs", false, "Log epoch and perf stats (overrides config when set)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *archivePath != "" {
		cfg.Archive.Path = *archivePath
	}
	if *archiveBackend != "" {
		cfg.Archive.Backend = *archiveBackend
	}

	sp, err := game.ParseSpeed(*speed)
	if err != nil || sp == game.Paused {
		slog.Error("invalid speed", "speed", *speed)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runFlags{
		seed:            *seed,
		epochs:          *epochs,
		executor:        *executor,
		speed:           sp,
		outputDir:       *outputDir,
		saveBest:        *saveBest,
		load:            *load,
		checkpoint:      *checkpoint,
		checkpointEvery: *checkpointEvery,
		hallPath:        *hallPath,
		logEpochs:       *logEpochs || cfg.Telemetry.LogEpochs,
	}); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type runFlags struct {
	seed            int64
	epochs          int
	executor        string
	speed           game.Speed
	outputDir       string
	saveBest        string
	load            string
	checkpoint      string
	checkpointEvery int
	hallPath        string
	logEpochs       bool
}

func run(ctx context.Context, cfg *config.Config, f runFlags) error {
	var store archive.Store
	if f.saveBest != "" || f.load != "" {
		s, err := archive.Open(ctx, cfg.Archive.Backend, cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer archive.CloseIfSupported(s)
		store = s
	}

	seeds, res, err := initialGenomes(ctx, store, f)
	if err != nil {
		return err
	}
	if f.seed == 0 {
		// A resumed run keeps its checkpoint's seed unless one is given.
		f.seed = res.seed
	}
	if f.seed == 0 {
		f.seed = time.Now().UnixNano()
	}

	om, err := telemetry.NewOutputManager(f.outputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	var hall *telemetry.HallOfFame
	if f.hallPath != "" {
		hall, err = telemetry.LoadHallOfFameFromFile(f.hallPath, cfg.HallOfFame.Size, rand.New(rand.NewSource(f.seed+1)))
		if err != nil {
			return err
		}
	}

	r, err := game.New(cfg, game.Options{
		Seed:            f.seed,
		Executor:        f.executor,
		Seeds:           seeds,
		Speed:           f.speed,
		StartEpoch:      res.epoch,
		Output:          om,
		Hall:            hall,
		LogEpochs:       f.logEpochs,
		CheckpointEvery: f.checkpointEvery,
	})
	if err != nil {
		return err
	}

	slog.Info("starting headless simulation",
		"seed", f.seed,
		"start_epoch", res.epoch,
		"epochs", f.epochs,
		"speed", f.speed.String(),
		"output_dir", om.Dir(),
	)

	runErr := loop(ctx, r, f.epochs)
	if errors.Is(runErr, context.Canceled) {
		slog.Info("interrupted", "epoch", r.Epoch().Epoch)
		runErr = nil
	}

	if runErr == nil && f.saveBest != "" {
		runErr = saveBestPopulation(ctx, store, r, f.saveBest)
	}
	return errors.Join(runErr, r.Close())
}

// loop runs frames until the epoch target is reached or ctx is done.
// Cancellation is only honoured between epochs.
func loop(ctx context.Context, r *game.Run, epochs int) error {
	start := r.Epoch().Epoch
	for epochs <= 0 || r.Epoch().Epoch-start < epochs {
		epoch := r.Epoch().Epoch
		if err := r.Frame(); err != nil {
			return err
		}
		if r.Epoch().Epoch != epoch {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	slog.Info("epoch limit reached", "epoch", r.Epoch().Epoch)
	return nil
}

// resumePoint is where a checkpointed run left off. It is zero for a
// fresh run.
type resumePoint struct {
	seed  int64
	epoch int
}

// initialGenomes resolves -checkpoint and -load into seed genomes.
func initialGenomes(ctx context.Context, store archive.Store, f runFlags) ([]*genome.Vector, resumePoint, error) {
	var seeds []*genome.Vector
	var res resumePoint

	if f.checkpoint != "" {
		cp, err := telemetry.LoadCheckpoint(f.checkpoint)
		if err != nil {
			return nil, res, err
		}
		slog.Info("resuming from checkpoint", "path", f.checkpoint, "epoch", cp.Epoch, "genomes", len(cp.Genomes))
		seeds = append(seeds, cp.Genomes...)
		res = resumePoint{seed: cp.RNGSeed, epoch: cp.Epoch}
	}

	if f.load != "" {
		for _, name := range strings.Split(f.load, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			p, err := store.Load(ctx, name)
			if err != nil {
				return nil, res, err
			}
			if p.Stale {
				slog.Warn("archived population predates the current force law; its score will be re-earned", "name", name)
			}
			slog.Info("loaded population", "name", name, "score", p.Score, "coherence", p.GeneticMetrics.CoherenceScore)
			seeds = append(seeds, p.Genome())
		}
	}
	return seeds, res, nil
}

func saveBestPopulation(ctx context.Context, store archive.Store, r *game.Run, name string) error {
	best, ok := r.Best()
	if !ok {
		slog.Warn("no completed epoch, nothing to save", "name", name)
		return nil
	}
	desc := fmt.Sprintf("best of epoch %d, seed %d", best.Last.Epoch, r.Seed())
	p, err := archive.Capture(r, best.ID, name, desc, time.Now())
	if err != nil {
		return err
	}
	if err := store.Save(ctx, p); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	slog.Info("population saved",
		"name", name,
		"score", p.Score,
		"coherence", p.GeneticMetrics.CoherenceScore,
		"rank", p.GeneticMetrics.RankInPopulation+1,
		"population_size", p.GeneticMetrics.PopulationSize,
	)
	return nil
}
