package evolution

import (
	"github.com/pthm-cable/plife/genome"
)

// Crossover strategy thresholds on parent coherence.
const (
	symmetricCoherence = 0.7
	blockCoherence     = 0.5

	hybridForceRate = 0.2
	hybridFoodRate  = 0.1
)

// Crossover names, reported by Strategy.
const (
	CrossSymmetric = "symmetric"
	CrossTypeBlock = "type_block"
	CrossHybrid    = "adaptive_hybrid"
	CrossPacked    = "packed_uniform"
)

// Strategy returns the crossover used for two parents.
func (e *Engine) Strategy(a, b *genome.Vector) string {
	switch {
	case e.opts.Packed:
		return CrossPacked
	case a.Coherence > symmetricCoherence && b.Coherence > symmetricCoherence:
		return CrossSymmetric
	case a.Coherence > blockCoherence || b.Coherence > blockCoherence:
		return CrossTypeBlock
	}
	return CrossHybrid
}

// crossover breeds one child. Parents of different type counts yield a clone
// of the first.
func (e *Engine) crossover(a, b *genome.Vector) *genome.Vector {
	if a.TypeCount != b.TypeCount {
		return a.Clone()
	}
	var child *genome.Vector
	switch e.Strategy(a, b) {
	case CrossPacked:
		child = e.packedUniform(a, b)
	case CrossSymmetric:
		child = e.symmetric(a, b)
	case CrossTypeBlock:
		child = e.typeBlock(a, b)
	default:
		child = e.hybrid(a, b)
	}
	child.ClampAll()
	child.Refresh()
	return child
}

func blank(a *genome.Vector) *genome.Vector {
	return &genome.Vector{
		ForceMatrix: make([]float32, len(a.ForceMatrix)),
		FoodForces:  make([]float32, len(a.FoodForces)),
		TypeCount:   a.TypeCount,
	}
}

// symmetric copies each unordered type pair's two relations from the same
// parent, so reciprocal structure survives.
func (e *Engine) symmetric(a, b *genome.Vector) *genome.Vector {
	n := a.TypeCount
	child := blank(a)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			src := e.either(a, b)
			child.SetForce(i, j, src.DecodeForce(i, j))
			child.SetForce(j, i, src.DecodeForce(j, i))
		}
		child.SetFoodForce(i, e.either(a, b).DecodeFoodForce(i))
	}
	return child
}

// typeBlock copies every outgoing relation and the food affinity of a type
// from one parent.
func (e *Engine) typeBlock(a, b *genome.Vector) *genome.Vector {
	n := a.TypeCount
	child := blank(a)
	for i := 0; i < n; i++ {
		src := e.either(a, b)
		for j := 0; j < n; j++ {
			child.SetForce(i, j, src.DecodeForce(i, j))
		}
		child.SetFoodForce(i, src.DecodeFoodForce(i))
	}
	return child
}

// hybrid starts from the more coherent parent and overwrites a sparse
// random subset of genes from the other.
func (e *Engine) hybrid(a, b *genome.Vector) *genome.Vector {
	base, other := a, b
	if b.Coherence > a.Coherence {
		base, other = b, a
	}
	child := base.Clone()
	child.FitnessHistory = nil
	for k := range child.ForceMatrix {
		if e.rng.Float32() < hybridForceRate {
			child.ForceMatrix[k] = other.ForceMatrix[k]
		}
	}
	for t := range child.FoodForces {
		if e.rng.Float32() < hybridFoodRate {
			child.FoodForces[t] = other.FoodForces[t]
		}
	}
	return child
}

// packedUniform recombines the packed encodings block by block so that no
// interaction is split between donors.
func (e *Engine) packedUniform(a, b *genome.Vector) *genome.Vector {
	pa, pb := genome.PackVector(a), genome.PackVector(b)
	n := a.TypeCount
	force := genome.BlockMask(n, func(int) bool { return e.rng.Intn(2) == 0 })
	food := genome.FoodBlockMask(n, func(int) bool { return e.rng.Intn(2) == 0 })
	child := genome.Packed{
		Force:     pa.Force&force | pb.Force&^force,
		Food:      pa.Food&food | pb.Food&^food,
		TypeCount: n,
	}
	return child.Vector()
}

func (e *Engine) either(a, b *genome.Vector) *genome.Vector {
	if e.rng.Intn(2) == 0 {
		return a
	}
	return b
}
