package evolution

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// ResetPlan is the shared starting layout for the next epoch. Every
// population places particle slot i at Positions[i].
type ResetPlan struct {
	Positions []mgl32.Vec3
}

// NewResetPlan samples n positions uniformly in [-extent/2, extent/2) per axis.
func NewResetPlan(n int, extent mgl32.Vec3, rng *rand.Rand) ResetPlan {
	plan := ResetPlan{Positions: make([]mgl32.Vec3, n)}
	for i := range plan.Positions {
		for a := 0; a < 3; a++ {
			plan.Positions[i][a] = (rng.Float32() - 0.5) * extent[a]
		}
	}
	return plan
}

// At returns the position for slot i, wrapping when the plan is shorter.
func (p ResetPlan) At(i int) mgl32.Vec3 {
	if len(p.Positions) == 0 {
		return mgl32.Vec3{}
	}
	return p.Positions[i%len(p.Positions)]
}
