package genome

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Coherence weights.
const (
	reciprocityWeight = 0.5
	foodBalanceWeight = 0.3
	oscillationWeight = 0.2

	// A 3-cycle is flagged when the product of its forces exceeds this.
	cycleMagnitude = 0.1
)

// Coherence scores how internally consistent a strategy is, in [0, 1]:
// reciprocal pair relations, a balance of food attraction and repulsion,
// and few self-reinforcing 3-cycles.
func Coherence(g Genome) float32 {
	n := g.Types()
	if n < 1 {
		return 0
	}

	reciprocity := float32(1)
	var sum float32
	pairs := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			r := 1 - absf(g.DecodeForce(i, j)+g.DecodeForce(j, i))/4
			if r < 0 {
				r = 0
			}
			sum += r
			pairs++
		}
	}
	if pairs > 0 {
		reciprocity = sum / float32(pairs)
	}

	var pos, neg int
	for t := 0; t < n; t++ {
		switch f := g.DecodeFoodForce(t); {
		case f > 0:
			pos++
		case f < 0:
			neg++
		}
	}
	var balance float32
	if total := pos + neg; total > 0 {
		balance = float32(min(pos, neg)) / float32(total)
	}

	oscillation := float32(1)
	if cycles, triples := OscillationCycles(g); triples > 0 {
		oscillation = 1 - float32(cycles)/float32(triples)
	}

	c := reciprocityWeight*reciprocity + foodBalanceWeight*balance + oscillationWeight*oscillation
	return min(max(c, 0), 1)
}

// OscillationCycles counts ordered triples of distinct types whose forces
// i→j→k→i multiply to a positive value above the cycle magnitude.
func OscillationCycles(g Genome) (cycles, triples int) {
	n := g.Types()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			for k := 0; k < n; k++ {
				if k == i || k == j {
					continue
				}
				triples++
				p := g.DecodeForce(i, j) * g.DecodeForce(j, k) * g.DecodeForce(k, i)
				if p > cycleMagnitude {
					cycles++
				}
			}
		}
	}
	return cycles, triples
}

// Distance is the Euclidean distance between the concatenated force matrix
// and food vectors. Genomes of different sizes compare over the shared prefix
// with any remainder counted in full.
func Distance(a, b *Vector) float32 {
	d := sqDiff(a.ForceMatrix, b.ForceMatrix) + sqDiff(a.FoodForces, b.FoodForces)
	return float32(math.Sqrt(d))
}

func sqDiff(x, y []float32) float64 {
	n := min(len(x), len(y))
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i], ys[i] = float64(x[i]), float64(y[i])
	}
	d := floats.Distance(xs, ys, 2)
	sum := d * d
	for _, v := range x[n:] {
		sum += float64(v) * float64(v)
	}
	for _, v := range y[n:] {
		sum += float64(v) * float64(v)
	}
	return sum
}

// Diversity is the mean pairwise Distance over all unordered pairs,
// 0 for fewer than two genomes.
func Diversity(gs []*Vector) float32 {
	if len(gs) < 2 {
		return 0
	}
	var total float64
	pairs := 0
	for i := range gs {
		for j := i + 1; j < len(gs); j++ {
			total += float64(Distance(gs[i], gs[j]))
			pairs++
		}
	}
	return float32(total / float64(pairs))
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
