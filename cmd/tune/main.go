// Package main tunes the genetic algorithm parameters with CMA-ES, scoring
// each candidate by the best population score after a few short epochs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/plife/config"
)

// logRow is one evaluation in tune_log.csv.
type logRow struct {
	Eval               int     `csv:"eval"`
	Fitness            float64 `csv:"fitness"`
	BestScore          float64 `csv:"best_score"`
	Coherence          float64 `csv:"coherence"`
	MutationRate       float64 `csv:"mutation_rate"`
	EliteRatio         float64 `csv:"elite_ratio"`
	CrossoverRate      float64 `csv:"crossover_rate"`
	CoherenceThreshold float64 `csv:"coherence_threshold"`
	InjectionRatio     float64 `csv:"injection_ratio"`
}

func newLogRow(eval int, ev Evaluation, values []float64) logRow {
	return logRow{
		Eval:               eval,
		Fitness:            ev.Fitness,
		BestScore:          ev.BestScore,
		Coherence:          ev.Coherence,
		MutationRate:       values[0],
		EliteRatio:         values[1],
		CrossoverRate:      values[2],
		CoherenceThreshold: values[3],
		InjectionRatio:     values[4],
	}
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	epochs := flag.Int("epochs", 5, "Epochs per evaluation run")
	epochDuration := flag.Float64("epoch-duration", 10, "Simulated seconds per epoch during tuning (0 = use config)")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if *epochs < 1 || *seeds < 1 {
		log.Fatal("--epochs and --seeds must be positive")
	}

	// Runs log at info on every start; keep the progress output readable.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *epochDuration > 0 {
		baseCfg.Simulation.EpochDuration = *epochDuration
		if err := baseCfg.Refresh(); err != nil {
			log.Fatalf("invalid epoch duration: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	params := NewParamVector()

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, *epochs, evalSeeds, baseCfg)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	popSize := *population
	if popSize == 0 {
		// Auto-size: 4 + floor(3*ln(n))
		popSize = 4 + int(3.0*math.Log(float64(dim)))
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // sequential; seeds already run in parallel
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	headerWritten := false

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if ctx.Err() != nil {
				return math.Inf(1)
			}
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(ctx, clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			ev := evaluator.Last()
			rows := []logRow{newLogRow(evalCount, ev, clamped)}
			var werr error
			if headerWritten {
				werr = gocsv.MarshalWithoutHeaders(rows, logFile)
			} else {
				werr = gocsv.Marshal(rows, logFile)
				headerWritten = werr == nil
			}
			if werr != nil {
				log.Printf("failed to write tune log: %v", werr)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

			fmt.Printf("Eval %d/%d: best_score=%.1f coherence=%.2f (best fitness=%.1f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, ev.BestScore, ev.Coherence, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES tuning with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, epochs per run: %d\n", *seeds, *epochs)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.2f\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	// The saved config keeps the caller's epoch duration, not the tuning one.
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		log.Fatalf("best parameters rejected: %v", err)
	}

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	if hof := evaluator.BestHallOfFame(); hof != nil && hof.Size() > 0 {
		hofPath := filepath.Join(*outputDir, "hall_of_fame.json")
		hofData, err := hof.MarshalJSON()
		if err != nil {
			log.Printf("failed to marshal hall of fame: %v", err)
		} else if err := os.WriteFile(hofPath, hofData, 0644); err != nil {
			log.Printf("failed to write hall of fame: %v", err)
		} else {
			fmt.Printf("Hall of fame saved to: %s\n", hofPath)
		}
	}
}
