package genome

import (
	"math"
	"math/rand"
)

// Packed is the legacy compact genome: the force matrix bit-packed into one
// 64-bit word and the food affinities into a 16-bit word.
//
// Interaction k = a*types+b occupies bits [k*w, (k+1)*w) of Force where
// w = ForceBits(types). Entries past bit 63 decode to 0.
type Packed struct {
	Force     uint64 `json:"force"`
	Food      uint16 `json:"food"`
	TypeCount int    `json:"type_count"`
}

// reshape is the exponent applied to the normalized block value. It biases
// random genomes toward mid-range forces.
const reshape = 0.7

// ForceBits returns the block width per interaction: 64/types², clamped to [2, 8].
func ForceBits(types int) int {
	return blockWidth(64, types*types)
}

// FoodBits returns the block width per food affinity: 16/types, clamped to [2, 8].
func FoodBits(types int) int {
	return blockWidth(16, types)
}

func blockWidth(total, n int) int {
	if n < 1 {
		n = 1
	}
	w := total / n
	if w < 2 {
		w = 2
	}
	if w > 8 {
		w = 8
	}
	return w
}

// RandomPacked draws uniform random words.
func RandomPacked(types int, rng *rand.Rand) Packed {
	return Packed{Force: rng.Uint64(), Food: uint16(rng.Uint32()), TypeCount: types}
}

// Types returns the number of particle types.
func (p Packed) Types() int { return p.TypeCount }

// DecodeForce extracts and reshapes the block for (a, b).
func (p Packed) DecodeForce(a, b int) float32 {
	n := p.TypeCount
	if a < 0 || b < 0 || a >= n || b >= n {
		return 0
	}
	w := ForceBits(n)
	start := (a*n + b) * w
	if start+w > 64 {
		return 0
	}
	return decodeBlock((p.Force>>uint(start))&blockMask(w), w)
}

// DecodeFoodForce extracts and reshapes the food block for t.
func (p Packed) DecodeFoodForce(t int) float32 {
	if t < 0 || t >= p.TypeCount {
		return 0
	}
	w := FoodBits(p.TypeCount)
	start := t * w
	if start+w > 16 {
		return 0
	}
	return decodeBlock((uint64(p.Food)>>uint(start))&blockMask(w), w)
}

// Vector converts to the canonical representation.
func (p Packed) Vector() *Vector {
	t := TableOf(p)
	v := &Vector{ForceMatrix: t.Force, FoodForces: t.Food, TypeCount: p.TypeCount}
	v.Refresh()
	return v
}

// PackVector quantizes a canonical genome to the nearest packed blocks,
// inverting the power-law reshaping. Interactions that do not fit are dropped.
func PackVector(v *Vector) Packed {
	n := v.TypeCount
	p := Packed{TypeCount: n}

	w := ForceBits(n)
	for k := 0; k < n*n; k++ {
		start := k * w
		if start+w > 64 {
			break
		}
		p.Force |= encodeBlock(v.ForceMatrix[k], w) << uint(start)
	}

	fw := FoodBits(n)
	for t := 0; t < n; t++ {
		start := t * fw
		if start+fw > 16 {
			break
		}
		p.Food |= uint16(encodeBlock(v.FoodForces[t], fw) << uint(start))
	}
	return p
}

// BlockMask returns a mask covering every complete force block, used by
// block-wise crossover so that no interaction is split between donors.
func BlockMask(types int, selected func(k int) bool) uint64 {
	w := ForceBits(types)
	var mask uint64
	for k := 0; k < types*types; k++ {
		start := k * w
		if start+w > 64 {
			break
		}
		if selected(k) {
			mask |= blockMask(w) << uint(start)
		}
	}
	return mask
}

// FoodBlockMask is BlockMask for the food word.
func FoodBlockMask(types int, selected func(t int) bool) uint16 {
	w := FoodBits(types)
	var mask uint16
	for t := 0; t < types; t++ {
		start := t * w
		if start+w > 16 {
			break
		}
		if selected(t) {
			mask |= uint16(blockMask(w) << uint(start))
		}
	}
	return mask
}

func blockMask(w int) uint64 {
	return (uint64(1) << uint(w)) - 1
}

func decodeBlock(raw uint64, w int) float32 {
	maxV := float64(blockMask(w))
	x := float64(raw)/maxV*2 - 1
	shaped := math.Copysign(math.Pow(math.Abs(x), reshape), x)
	return Clamp(float32(shaped) * MaxForce)
}

func encodeBlock(f float32, w int) uint64 {
	x := float64(Clamp(f) / MaxForce)
	lin := math.Copysign(math.Pow(math.Abs(x), 1/reshape), x)
	maxV := float64(blockMask(w))
	raw := math.Round((lin + 1) / 2 * maxV)
	if raw < 0 {
		raw = 0
	}
	if raw > maxV {
		raw = maxV
	}
	return uint64(raw)
}
