package evolution

import "math/rand"

// tournament draws parents by weighted tournament over the ranked candidates.
type tournament struct {
	size    int
	weights []float64 // by candidate index
}

func newTournament(cands []Candidate, ranking []int, threshold float32) *tournament {
	n := len(cands)
	size := 3
	if n >= 20 {
		size = 4
	}
	t := &tournament{size: min(size, n), weights: make([]float64, n)}
	for rank, idx := range ranking {
		bonus := max(0, cands[idx].Genome.Coherence-threshold)
		t.weights[idx] = float64(n-rank) + 10*float64(bonus)
	}
	return t
}

// pick samples size distinct contestants and returns one drawn with
// probability proportional to its weight.
func (t *tournament) pick(rng *rand.Rand) int {
	contestants := rng.Perm(len(t.weights))[:t.size]
	var total float64
	for _, c := range contestants {
		total += t.weights[c]
	}
	r := rng.Float64() * total
	for _, c := range contestants {
		r -= t.weights[c]
		if r < 0 {
			return c
		}
	}
	return contestants[len(contestants)-1]
}

// pair returns two parents from separate tournaments, distinct when the
// population allows it.
func (t *tournament) pair(rng *rand.Rand) (int, int) {
	a := t.pick(rng)
	b := t.pick(rng)
	for tries := 0; b == a && tries < 4; tries++ {
		b = t.pick(rng)
	}
	return a, b
}
