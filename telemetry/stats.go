// Package telemetry records per-epoch statistics, timing, the hall of fame
// and checkpoints of a run.
package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/plife/evolution"
)

// EpochStats is one row of epochs.csv.
type EpochStats struct {
	Epoch      int     `csv:"epoch"`
	SimTimeSec float64 `csv:"sim_time"`

	Populations int     `csv:"populations"`
	Best        float64 `csv:"best"`
	Worst       float64 `csv:"worst"`
	Mean        float64 `csv:"mean"`
	Median      float64 `csv:"median"`
	Std         float64 `csv:"std"`
	P10         float64 `csv:"p10"`
	P90         float64 `csv:"p90"`

	CoherenceMean float64 `csv:"coherence_mean"`
	Diversity     float64 `csv:"diversity"`
	Improvement   float64 `csv:"improvement"`

	// Reproduction
	MutationRate float64 `csv:"mutation_rate"`
	Elites       int     `csv:"elites"`
	Crossovers   int     `csv:"crossovers"`
	Replaced     int     `csv:"replaced"`
	Injected     int     `csv:"injected"`

	FoodEaten int `csv:"food_eaten"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = max(0, min(1, p))
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// FromGeneration flattens an epoch transition into a CSV row. scores are the
// raw epoch scores, used for the tail percentiles.
func FromGeneration(gen *evolution.Generation, scores []float32, simTime float64, foodEaten int) EpochStats {
	st := gen.Stats
	sorted := make([]float64, len(scores))
	for i, s := range scores {
		sorted[i] = float64(s)
	}
	slices.Sort(sorted)

	return EpochStats{
		Epoch:         gen.Epoch,
		SimTimeSec:    simTime,
		Populations:   st.Populations,
		Best:          float64(st.Best),
		Worst:         float64(st.Worst),
		Mean:          float64(st.Mean),
		Median:        float64(st.Median),
		Std:           float64(st.StdDev),
		P10:           Percentile(sorted, 0.10),
		P90:           Percentile(sorted, 0.90),
		CoherenceMean: float64(st.MeanCoherence),
		Diversity:     float64(st.Diversity),
		Improvement:   float64(st.Improvement),
		MutationRate:  float64(gen.MutationRate),
		Elites:        gen.Elites,
		Crossovers:    gen.Crossovers,
		Replaced:      gen.Replaced,
		Injected:      gen.Injected,
		FoodEaten:     foodEaten,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s EpochStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("epoch", s.Epoch),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("populations", s.Populations),
		slog.Float64("best", s.Best),
		slog.Float64("worst", s.Worst),
		slog.Float64("mean", s.Mean),
		slog.Float64("median", s.Median),
		slog.Float64("std", s.Std),
		slog.Float64("coherence_mean", s.CoherenceMean),
		slog.Float64("diversity", s.Diversity),
		slog.Float64("improvement", s.Improvement),
		slog.Float64("mutation_rate", s.MutationRate),
		slog.Int("elites", s.Elites),
		slog.Int("injected", s.Injected),
		slog.Int("food_eaten", s.FoodEaten),
	)
}

// LogStats logs the epoch stats using slog.
func (s EpochStats) LogStats() {
	slog.Info("epoch",
		"epoch", s.Epoch,
		"sim_time", s.SimTimeSec,
		"best", s.Best,
		"mean", s.Mean,
		"median", s.Median,
		"std", s.Std,
		"coherence_mean", s.CoherenceMean,
		"diversity", s.Diversity,
		"improvement", s.Improvement,
		"mutation_rate", s.MutationRate,
		"elites", s.Elites,
		"injected", s.Injected,
		"food_eaten", s.FoodEaten,
	)
}
