package evolution

import (
	"github.com/pthm-cable/plife/genome"
)

// Factors on the base mutation rate.
func diversityFactor(diversity, threshold float32) float32 {
	switch {
	case diversity < threshold:
		return 1.5
	case diversity > 2.0:
		return 0.7
	}
	return 1
}

func stagnationFactor(stagnant int) float32 {
	return min(2, 1+0.25*float32(stagnant))
}

func coherenceFactor(c, threshold float32) float32 {
	switch {
	case c > 0.7:
		return 0.6
	case c < threshold:
		return 1.4
	}
	return 1
}

// mutate applies adaptive gaussian mutation to an offspring in place. When
// the result drops below the coherence threshold it retries from the
// unmutated genome; false means every attempt failed and the caller should
// replace the child.
func (e *Engine) mutate(child *genome.Vector, rate float32) bool {
	rate *= coherenceFactor(child.Coherence, e.opts.CoherenceThreshold)
	orig := child.Clone()
	for attempt := 0; ; attempt++ {
		changed := e.mutateGenes(child, rate)
		child.Refresh()
		if changed == 0 || child.Coherence >= e.opts.CoherenceThreshold {
			return true
		}
		if attempt >= e.opts.MutationRetries {
			return false
		}
		copy(child.ForceMatrix, orig.ForceMatrix)
		copy(child.FoodForces, orig.FoodForces)
	}
}

// mutateGenes perturbs each gene with probability rate and returns the
// number of genes touched.
func (e *Engine) mutateGenes(g *genome.Vector, rate float32) int {
	sigma := float64(e.opts.MutationSigma * genome.MaxForce)
	changed := 0
	step := func(f float32) float32 {
		changed++
		return genome.Clamp(f + float32(e.rng.NormFloat64()*sigma))
	}
	for k, f := range g.ForceMatrix {
		if e.rng.Float32() < rate {
			g.ForceMatrix[k] = step(f)
		}
	}
	for t, f := range g.FoodForces {
		if e.rng.Float32() < rate {
			g.FoodForces[t] = step(f)
		}
	}
	return changed
}
