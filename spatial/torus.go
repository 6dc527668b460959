package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// TorusDirection returns the shortest signed displacement from one point to
// another on a torus with the given extents. An axis with a non-positive
// extent is treated as unbounded.
func TorusDirection(from, to, extent mgl32.Vec3) mgl32.Vec3 {
	var d mgl32.Vec3
	for i := 0; i < 3; i++ {
		d[i] = float32(wrapDelta(float64(to[i])-float64(from[i]), float64(extent[i])))
	}
	return d
}

// TorusDistance is the length of TorusDirection. It is symmetric and never
// exceeds the Euclidean distance.
func TorusDistance(a, b, extent mgl32.Vec3) float32 {
	var sum float64
	for i := 0; i < 3; i++ {
		d := wrapDelta(float64(b[i])-float64(a[i]), float64(extent[i]))
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func wrapDelta(d, size float64) float64 {
	if size <= 0 {
		return d
	}
	return d - size*math.Round(d/size)
}

// Wrap maps every axis of p into [-L/2, L/2).
func Wrap(p, extent mgl32.Vec3) mgl32.Vec3 {
	for i := 0; i < 3; i++ {
		size := extent[i]
		if size <= 0 {
			continue
		}
		half := size / 2
		x := float64(p[i]) + float64(half)
		x -= float64(size) * math.Floor(x/float64(size))
		w := float32(x) - half
		// float32 rounding can land exactly on the open edge
		if w >= half {
			w -= size
		}
		if w < -half {
			w = -half
		}
		p[i] = w
	}
	return p
}

// GhostOffsets returns the 27 translations of the domain, one per
// combination of -1, 0 and +1 extent offsets per axis. The zero offset is first.
func GhostOffsets(extent mgl32.Vec3) [27]mgl32.Vec3 {
	var out [27]mgl32.Vec3
	n := 1
	for _, dx := range [3]float32{0, -1, 1} {
		for _, dy := range [3]float32{0, -1, 1} {
			for _, dz := range [3]float32{0, -1, 1} {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out[n] = mgl32.Vec3{dx * extent[0], dy * extent[1], dz * extent[2]}
				n++
			}
		}
	}
	return out
}
