// Package physics advances particles by one fixed timestep: the two-regime
// pair force, the food pull, damped integration and the boundary policy,
// executed on a CPU worker pool or a batched compute kernel.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/spatial"
)

// MinDistSq is the squared distance below which a pair contributes nothing.
const MinDistSq = 0.001

// MinFoodForce is the food affinity below which food is ignored.
const MinFoodForce = 0.001

// Params holds the per-run physics constants shared by every executor.
type Params struct {
	DT               float32
	MaxForceRange    float32
	ParticleRadius   float32
	TypeCount        int
	MinR             float32 // TypeCount * ParticleRadius
	HalfLife         float32
	MaxVelocity      float32
	FoodRadius       float32
	CollisionDamping float32
	MaxInteractions  int
	Extent           mgl32.Vec3
	Mode             spatial.Mode
}

// ParamsFrom extracts the physics constants from a loaded config.
func ParamsFrom(cfg *config.Config) Params {
	d := cfg.Derived
	mode := spatial.Bounded
	if d.Teleport {
		mode = spatial.Toroidal
	}
	return Params{
		DT:               d.DT32,
		MaxForceRange:    d.ForceRange32,
		ParticleRadius:   d.Radius32,
		TypeCount:        cfg.Simulation.ParticleTypes,
		MinR:             d.MinR,
		HalfLife:         d.HalfLife32,
		MaxVelocity:      d.MaxVelocity32,
		FoodRadius:       d.FoodRadius32,
		CollisionDamping: d.Damping32,
		MaxInteractions:  cfg.Simulation.MaxInteractions,
		Extent:           d.Extent,
		Mode:             mode,
	}
}

// Decay is the per-step velocity factor 0.5^(dt/half_life).
func (p Params) Decay() float32 {
	if p.HalfLife <= 0 {
		return 0
	}
	return float32(math.Pow(0.5, float64(p.DT)/float64(p.HalfLife)))
}

// Displacement returns the vector from a to b under the run's topology.
func (p Params) Displacement(a, b mgl32.Vec3) mgl32.Vec3 {
	if p.Mode == spatial.Toroidal {
		return spatial.TorusDirection(a, b, p.Extent)
	}
	return b.Sub(a)
}

// Acceleration is the two-regime radial law in units normalised by rangeMax.
// Inside minR the pair repels with magnitude dist/minR - 1; beyond it the
// attraction coefficient is shaped by a triangular profile that peaks midway
// between minR and rangeMax.
func Acceleration(minR float32, rel mgl32.Vec3, attraction, rangeMax float32) mgl32.Vec3 {
	if rangeMax <= 0 {
		return mgl32.Vec3{}
	}
	if rel.Len() < 0.001 {
		return mgl32.Vec3{}
	}
	n := rel.Mul(1 / rangeMax)
	nd := n.Len()
	minRN := minR / rangeMax

	var force float32
	if nd < minRN {
		force = nd/minRN - 1
	} else if minRN < 1 {
		force = attraction * (1 - absf(1+minRN-2*nd)/(1-minRN))
	}
	return n.Mul(force / nd)
}

// PairTerm is the acceleration contribution of one neighbour at displacement
// rel. It reports false when the pair is out of range or too close to count.
func PairTerm(p *Params, rel mgl32.Vec3, attraction float32) (mgl32.Vec3, bool) {
	distSq := rel.Dot(rel)
	if distSq > p.MaxForceRange*p.MaxForceRange || distSq < MinDistSq {
		return mgl32.Vec3{}, false
	}
	return Acceleration(p.MinR, rel, attraction, p.MaxForceRange).Mul(p.MaxForceRange), true
}

// FoodPull is the food attraction along rel for one visible food item.
func FoodPull(foodForce float32, rel mgl32.Vec3, foodRadius, rangeMax float32) mgl32.Vec3 {
	if absf(foodForce) <= MinFoodForce {
		return mgl32.Vec3{}
	}
	d := rel.Len()
	if d <= 0.001 || d >= rangeMax {
		return mgl32.Vec3{}
	}
	scale := float32(math.Sqrt(float64(min(1, 2*foodRadius/d))))
	return rel.Mul(foodForce * scale / d)
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
