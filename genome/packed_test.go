package genome

import (
	"math/rand"
	"testing"
)

func TestForceBits(t *testing.T) {
	tests := []struct {
		types int
		want  int
	}{
		{1, 8},  // 64 bits for one interaction, clamped to 8
		{2, 8},  // 16 per interaction, clamped
		{3, 7},  // 64/9
		{4, 4},  // 64/16
		{5, 2},  // 64/25
		{8, 2},  // 64/64 = 1, clamped up
		{0, 8},  // degenerate, treated as one interaction
		{16, 2}, // 0, clamped up
	}
	for _, tt := range tests {
		if got := ForceBits(tt.types); got != tt.want {
			t.Errorf("ForceBits(%d) = %d, want %d", tt.types, got, tt.want)
		}
	}
}

func TestPackedExtremes(t *testing.T) {
	full := Packed{Force: ^uint64(0), Food: ^uint16(0), TypeCount: 3}
	empty := Packed{TypeCount: 3}

	if got := full.DecodeForce(0, 0); got != MaxForce {
		t.Errorf("all-ones block = %v, want %v", got, MaxForce)
	}
	if got := empty.DecodeForce(2, 2); got != -MaxForce {
		t.Errorf("all-zeros block = %v, want %v", got, -MaxForce)
	}
	if got := full.DecodeFoodForce(1); got != MaxForce {
		t.Errorf("all-ones food block = %v, want %v", got, MaxForce)
	}
}

func TestPackedOverflowDecodesZero(t *testing.T) {
	// 5 types: 25 interactions of 2 bits need 50 bits, all fit.
	// 6 types: 36 interactions of 2 bits need 72 bits; the tail does not fit.
	p := Packed{Force: ^uint64(0), TypeCount: 6}
	if got := p.DecodeForce(5, 5); got != 0 {
		t.Errorf("interaction past bit 63 = %v, want 0", got)
	}
	if got := p.DecodeForce(0, 0); got == 0 {
		t.Error("first interaction should decode from the word")
	}
}

func TestPackedPowerLaw(t *testing.T) {
	// With 4-bit blocks (4 types) the raw value 12 normalizes to 12/15*2-1 = 0.6.
	p := Packed{Force: 12, TypeCount: 4}
	want := float32(1.3987) // 0.6^0.7 * 2
	got := p.DecodeForce(0, 0)
	if d := got - want; d > 1e-3 || d < -1e-3 {
		t.Errorf("DecodeForce = %v, want ~%v", got, want)
	}
}

func TestPackVectorRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for types := 1; types <= 5; types++ {
		p := RandomPacked(types, rng)
		back := PackVector(p.Vector())
		for a := 0; a < types; a++ {
			for b := 0; b < types; b++ {
				if back.DecodeForce(a, b) != p.DecodeForce(a, b) {
					t.Errorf("types=%d (%d,%d): round trip %v, want %v",
						types, a, b, back.DecodeForce(a, b), p.DecodeForce(a, b))
				}
			}
			if back.DecodeFoodForce(a) != p.DecodeFoodForce(a) {
				t.Errorf("types=%d food %d: round trip %v, want %v",
					types, a, back.DecodeFoodForce(a), p.DecodeFoodForce(a))
			}
		}
	}
}

func TestBlockMaskCoversWholeBlocks(t *testing.T) {
	mask := BlockMask(3, func(k int) bool { return k == 1 })
	// 7-bit blocks: interaction 1 occupies bits 7..13.
	want := uint64(0x7f) << 7
	if mask != want {
		t.Errorf("BlockMask = %#x, want %#x", mask, want)
	}
}

func TestFoodBlockMask(t *testing.T) {
	// 3 types: 5-bit food blocks, type 2 occupies bits 10..14.
	mask := FoodBlockMask(3, func(t int) bool { return t == 2 })
	if want := uint16(0x1f) << 10; mask != want {
		t.Errorf("FoodBlockMask = %#x, want %#x", mask, want)
	}
}
