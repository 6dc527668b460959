package main

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/game"
	"github.com/pthm-cable/plife/telemetry"
)

// coherenceBonus scales how much mean coherence separates configs with
// similar best scores.
const coherenceBonus = 0.2

// FitnessEvaluator runs short headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	epochs     int
	seeds      []int64
	baseConfig *config.Config

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	last           Evaluation
}

// Evaluation is the aggregate of one parameter vector over all seeds.
type Evaluation struct {
	Fitness   float64
	BestScore float64 // mean over seeds of the final epoch's best score
	Coherence float64 // mean over seeds of the final epoch's mean coherence
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, epochs int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		epochs:      epochs,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// Last returns the most recent evaluation.
func (fe *FitnessEvaluator) Last() Evaluation {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// seedResult holds the result from one seed.
type seedResult struct {
	best       float64
	coherence  float64
	hallOfFame *telemetry.HallOfFame
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Seeds run concurrently. A failed run scores +Inf.
func (fe *FitnessEvaluator) Evaluate(ctx context.Context, x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		fe.record(Evaluation{Fitness: math.Inf(1)}, nil)
		return math.Inf(1)
	}

	results := make([]seedResult, len(fe.seeds))
	p := pool.New().WithErrors().WithContext(ctx)
	for i, seed := range fe.seeds {
		p.Go(func(ctx context.Context) error {
			r, err := fe.runSimulation(ctx, cfg, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		fe.record(Evaluation{Fitness: math.Inf(1)}, nil)
		return math.Inf(1)
	}

	var ev Evaluation
	bestSeed := 0
	for i, r := range results {
		ev.BestScore += r.best
		ev.Coherence += r.coherence
		if r.best > results[bestSeed].best {
			bestSeed = i
		}
	}
	n := float64(len(results))
	ev.BestScore /= n
	ev.Coherence /= n
	ev.Fitness = computeFitness(ev.BestScore, ev.Coherence)

	var hof *telemetry.HallOfFame
	if len(results) > 0 {
		hof = results[bestSeed].hallOfFame
	}
	fe.record(ev, hof)
	return ev.Fitness
}

func (fe *FitnessEvaluator) record(ev Evaluation, hof *telemetry.HallOfFame) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if ev.Fitness < fe.bestFitness {
		fe.bestFitness = ev.Fitness
		fe.bestHallOfFame = hof
	}
	fe.last = ev
}

// runSimulation executes one headless run for the configured epoch count.
func (fe *FitnessEvaluator) runSimulation(ctx context.Context, cfg *config.Config, seed int64) (seedResult, error) {
	r, err := game.New(cfg.Clone(), game.Options{Seed: seed, Executor: "cpu"})
	if err != nil {
		return seedResult{}, err
	}
	runErr := r.RunEpochs(ctx, fe.epochs)
	res := seedResult{hallOfFame: r.Hall()}
	if gen := r.LastGeneration(); gen != nil {
		res.best = float64(gen.Stats.Best)
		res.coherence = float64(gen.Stats.MeanCoherence)
	}
	if err := r.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return res, runErr
}

// computeFitness is the negated best score, with up to a 20% bonus from
// mean coherence.
func computeFitness(best, coherence float64) float64 {
	return -(best * (1.0 + coherenceBonus*clamp01(coherence)))
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
