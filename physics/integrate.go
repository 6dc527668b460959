package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/spatial"
)

// Integrate applies acceleration over one step, the exponential damping and
// the speed clamp, and returns the new velocity.
func Integrate(v, acc mgl32.Vec3, p *Params) mgl32.Vec3 {
	v = v.Add(acc.Mul(p.DT))
	v = v.Mul(p.Decay())
	return ClampSpeed(v, p.MaxVelocity)
}

// ClampSpeed scales v down to at most maxSpeed.
func ClampSpeed(v mgl32.Vec3, maxSpeed float32) mgl32.Vec3 {
	if maxSpeed <= 0 {
		return v
	}
	if l := v.Len(); l > maxSpeed {
		v = v.Mul(maxSpeed / l)
	}
	return v
}

// ApplyBounds enforces the boundary policy after the position update.
// Bounded: an axis past half extent minus the particle radius is reflected
// about that limit, clamped inside, and its velocity negated and damped.
// Toroidal: the position wraps into [-L/2, L/2).
func ApplyBounds(pos, vel mgl32.Vec3, p *Params) (mgl32.Vec3, mgl32.Vec3) {
	if p.Mode == spatial.Toroidal {
		return spatial.Wrap(pos, p.Extent), vel
	}
	for i := 0; i < 3; i++ {
		limit := p.Extent[i]/2 - p.ParticleRadius
		if limit < 0 {
			limit = 0
		}
		switch {
		case pos[i] > limit:
			pos[i] = max(2*limit-pos[i], -limit)
			vel[i] = -vel[i] * p.CollisionDamping
		case pos[i] < -limit:
			pos[i] = min(-2*limit-pos[i], limit)
			vel[i] = -vel[i] * p.CollisionDamping
		}
	}
	return pos, vel
}

// Advance is the whole per-particle update shared by every executor.
func Advance(pos, vel, acc mgl32.Vec3, p *Params) (mgl32.Vec3, mgl32.Vec3) {
	vel = Integrate(vel, acc, p)
	pos = pos.Add(vel.Mul(p.DT))
	return ApplyBounds(pos, vel, p)
}
