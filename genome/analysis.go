package genome

import "fmt"

// DiversityContribution rewards unusual but consistent interactions:
// moderately strong forces, moderate asymmetries and varied food affinities.
func DiversityContribution(v *Vector) float32 {
	n := v.TypeCount
	if n < 1 {
		return 0
	}
	var score float32
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			f := v.DecodeForce(i, j)
			if a := absf(f); a > 0.8 && a < 1.5 {
				score += 0.1
			}
			if i != j {
				asym := absf(f - v.DecodeForce(j, i))
				if asym > 0.3 && asym < 1.0 {
					score += 0.05
				}
			}
		}
	}
	score += float32(distinctLevels(v.FoodForces)) / float32(n)
	return min(score, 1)
}

// Complexity estimates behavioural richness in [0, 1] from the number of
// distinct force levels, strong 3-cycles and how weak the food pull is.
func Complexity(v *Vector) float32 {
	n := v.TypeCount
	if n < 1 {
		return 0
	}
	c := float32(distinctLevels(v.ForceMatrix)) / 20

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				if i == j || j == k || k == i {
					continue
				}
				p := v.DecodeForce(i, j) * v.DecodeForce(j, k) * v.DecodeForce(k, i)
				if absf(p) > cycleMagnitude {
					c += 0.1
				}
			}
		}
	}

	var foodMag float32
	for _, f := range v.FoodForces {
		foodMag += absf(f)
	}
	c += (1 - min(foodMag/float32(n), 1)) * 0.3

	return min(c, 2) / 2
}

// PredictBehaviours names the emergent behaviours a force matrix is likely
// to produce. The list is never empty.
func PredictBehaviours(v *Vector) []string {
	n := v.TypeCount
	var out []string

	selfRepel := 0
	for i := 0; i < n; i++ {
		if v.DecodeForce(i, i) < -0.2 {
			selfRepel++
		}
	}
	if n > 0 && selfRepel >= n/2 {
		out = append(out, "swarm")
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && v.DecodeForce(i, j) > 0.7 && v.DecodeForce(j, i) < -0.5 {
				out = append(out, fmt.Sprintf("predator-prey (type %d -> type %d)", i, j))
			}
		}
	}

	hungry := 0
	for t := 0; t < n; t++ {
		if v.DecodeFoodForce(t) > 0.5 {
			hungry++
		}
	}
	if hungry > n/2 {
		out = append(out, "food competition")
	}

	cycles := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				if i != j && j != k && k != i &&
					v.DecodeForce(i, j) > 0.3 && v.DecodeForce(j, k) > 0.3 && v.DecodeForce(k, i) > 0.3 {
					cycles++
				}
			}
		}
	}
	if cycles > 0 {
		out = append(out, "attraction cycles")
	}

	strongRepel := 0
	for _, f := range v.ForceMatrix {
		if f < -0.8 {
			strongRepel++
		}
	}
	if strongRepel > n {
		out = append(out, "territorial")
	}

	if len(out) == 0 {
		out = append(out, "neutral")
	}
	return out
}

// distinctLevels counts values that differ after rounding to one decimal.
func distinctLevels(values []float32) int {
	seen := make(map[int32]struct{}, len(values))
	for _, f := range values {
		q := f * 10
		if q < 0 {
			q -= 0.5
		} else {
			q += 0.5
		}
		seen[int32(q)] = struct{}{}
	}
	return len(seen)
}
