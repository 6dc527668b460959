package evolution

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/plife/genome"
)

// Combined fitness weights.
const (
	scoreWeight     = 0.6
	coherenceWeight = 0.3
	trendWeight     = 0.1

	// Trend differences are scaled by this before clamping to [-1, 1].
	trendScale = 10
)

// EpochStats summarizes one epoch's scores.
type EpochStats struct {
	Epoch         int     `csv:"epoch"`
	Populations   int     `csv:"populations"`
	Best          float32 `csv:"best"`
	Worst         float32 `csv:"worst"`
	Mean          float32 `csv:"mean"`
	Median        float32 `csv:"median"`
	StdDev        float32 `csv:"stddev"`
	MeanCoherence float32 `csv:"mean_coherence"`
	Improvement   float32 `csv:"improvement"`
	Diversity     float32 `csv:"diversity"`
}

// Score computes the epoch statistics. Improvement is best minus prevBest.
// An empty candidate list yields zero stats.
func Score(cands []Candidate, prevBest float32) EpochStats {
	st := EpochStats{Populations: len(cands)}
	if len(cands) == 0 {
		return st
	}

	scores := make([]float64, len(cands))
	coherence := make([]float64, len(cands))
	genomes := make([]*genome.Vector, len(cands))
	for i, c := range cands {
		scores[i] = float64(c.Score)
		coherence[i] = float64(c.Genome.Coherence)
		genomes[i] = c.Genome
	}

	st.Mean = float32(stat.Mean(scores, nil))
	if len(scores) > 1 {
		st.StdDev = float32(stat.StdDev(scores, nil))
	}
	st.MeanCoherence = float32(stat.Mean(coherence, nil))

	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	st.Worst = float32(sorted[0])
	st.Best = float32(sorted[len(sorted)-1])
	st.Median = float32(stat.Quantile(0.5, stat.Empirical, sorted, nil))

	st.Improvement = st.Best - prevBest
	st.Diversity = genome.Diversity(genomes)
	return st
}

// CombinedFitness blends the normalized score, a coherence bonus and a
// fitness-trend bonus per candidate.
func CombinedFitness(cands []Candidate, st EpochStats, threshold float32) []float32 {
	out := make([]float32, len(cands))
	span := st.Best - st.Worst
	for i, c := range cands {
		norm := float32(0.5)
		if span > 0 {
			norm = (c.Score - st.Worst) / span
		}
		out[i] = scoreWeight*norm +
			coherenceWeight*coherenceBonus(c.Genome.Coherence, threshold) +
			trendWeight*trendBonus(c.Genome.FitnessTrend())
	}
	return out
}

func coherenceBonus(c, threshold float32) float32 {
	if threshold >= 1 {
		return 0
	}
	return max(0, c-threshold) / (1 - threshold)
}

func trendBonus(trend float32) float32 {
	x := trend / trendScale
	if math.IsNaN(float64(x)) {
		x = 0
	}
	x = max(-1, min(1, x))
	return (x + 1) / 2
}

// Rank returns candidate indices ordered by descending fitness. Ties keep
// their original order.
func Rank(fitness []float32) []int {
	order := make([]int, len(fitness))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case fitness[a] > fitness[b]:
			return -1
		case fitness[a] < fitness[b]:
			return 1
		}
		return 0
	})
	return order
}
