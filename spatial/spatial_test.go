package spatial

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func randVec(rng *rand.Rand, span float32) mgl32.Vec3 {
	return mgl32.Vec3{
		(rng.Float32() - 0.5) * span,
		(rng.Float32() - 0.5) * span,
		(rng.Float32() - 0.5) * span,
	}
}

func TestTorusDistanceSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		extent := mgl32.Vec3{50 + rng.Float32()*400, 50 + rng.Float32()*400, 50 + rng.Float32()*400}
		p := randVec(rng, 1000)
		q := randVec(rng, 1000)

		pq := TorusDistance(p, q, extent)
		qp := TorusDistance(q, p, extent)
		if pq != qp {
			t.Fatalf("TorusDistance not symmetric: %v vs %v", pq, qp)
		}
		if eu := q.Sub(p).Len(); pq > eu*(1+1e-6)+1e-4 {
			t.Fatalf("TorusDistance %v exceeds euclidean %v", pq, eu)
		}
	}
}

func TestTorusDirection(t *testing.T) {
	extent := mgl32.Vec3{100, 100, 100}
	tests := []struct {
		name     string
		from, to mgl32.Vec3
		want     mgl32.Vec3
	}{
		{"inside", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{10, -20, 5}, mgl32.Vec3{10, -20, 5}},
		{"across +x edge", mgl32.Vec3{45, 0, 0}, mgl32.Vec3{-45, 0, 0}, mgl32.Vec3{10, 0, 0}},
		{"across -z edge", mgl32.Vec3{0, 0, -48}, mgl32.Vec3{0, 0, 48}, mgl32.Vec3{0, 0, -4}},
		{"all axes", mgl32.Vec3{-49, 49, -49}, mgl32.Vec3{49, -49, 49}, mgl32.Vec3{-2, 2, -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TorusDirection(tt.from, tt.to, extent)
			if !got.ApproxEqualThreshold(tt.want, 1e-4) {
				t.Errorf("TorusDirection = %v, want %v", got, tt.want)
			}
			back := TorusDirection(tt.to, tt.from, extent)
			if !back.ApproxEqualThreshold(tt.want.Mul(-1), 1e-4) {
				t.Errorf("reverse direction = %v, want %v", back, tt.want.Mul(-1))
			}
		})
	}
}

func TestWrapIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	extent := mgl32.Vec3{400, 300, 200}
	half := extent.Mul(0.5)
	for i := 0; i < 1000; i++ {
		p := randVec(rng, 3000)
		w := Wrap(p, extent)
		for a := 0; a < 3; a++ {
			if w[a] < -half[a] || w[a] >= half[a] {
				t.Fatalf("Wrap(%v)[%d] = %v outside [%v, %v)", p, a, w[a], -half[a], half[a])
			}
		}
		if again := Wrap(w, extent); again != w {
			t.Fatalf("Wrap not idempotent: %v then %v", w, again)
		}
		// Wrapping moves by whole extents only.
		if d := TorusDistance(p, w, extent); d > 1e-2 {
			t.Fatalf("Wrap moved %v to a different torus point %v (d=%v)", p, w, d)
		}
	}
}

func TestWrapEdge(t *testing.T) {
	extent := mgl32.Vec3{100, 100, 100}
	got := Wrap(mgl32.Vec3{50, -50, 150}, extent)
	want := mgl32.Vec3{-50, -50, -50}
	if got != want {
		t.Errorf("Wrap = %v, want %v", got, want)
	}
}

func TestGhostOffsets(t *testing.T) {
	extent := mgl32.Vec3{10, 20, 30}
	offs := GhostOffsets(extent)
	if offs[0] != (mgl32.Vec3{}) {
		t.Errorf("first offset = %v, want zero", offs[0])
	}
	seen := map[mgl32.Vec3]bool{}
	for _, o := range offs {
		if seen[o] {
			t.Errorf("duplicate offset %v", o)
		}
		seen[o] = true
	}
	if !seen[mgl32.Vec3{-10, 20, -30}] {
		t.Error("missing corner offset (-x, +y, -z)")
	}
}

func bruteForce(pts []Point, self int, radius float32, mode Mode, extent mgl32.Vec3) []int32 {
	q := pts[self]
	var ids []int32
	for i, p := range pts {
		if i == self || p.Pop != q.Pop {
			continue
		}
		d := p.Pos.Sub(q.Pos)
		if mode == Toroidal {
			d = TorusDirection(q.Pos, p.Pos, extent)
		}
		if d.Dot(d) <= radius*radius {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func TestIndexMatchesBruteForce(t *testing.T) {
	extent := mgl32.Vec3{200, 200, 200}
	tests := []struct {
		name   string
		mode   Mode
		radius float32
	}{
		{"grid", Bounded, 40},
		{"grid wide radius", Bounded, 90},
		{"torus", Toroidal, 40},
		{"torus radius past half extent", Toroidal, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			pts := make([]Point, 300)
			for i := range pts {
				pts[i] = Point{
					ID:   int32(i),
					Pop:  uint16(i % 3),
					Type: uint8(i % 4),
					Pos:  randVec(rng, 200),
				}
			}

			idx := New(tt.mode, extent, tt.radius)
			idx.Rebuild(pts)

			var dst []Neighbor
			for self := range pts {
				dst = idx.Query(dst[:0], int32(self), tt.radius)
				want := bruteForce(pts, self, tt.radius, tt.mode, extent)

				if len(dst) != len(want) {
					t.Fatalf("point %d: got %d neighbours, want %d", self, len(dst), len(want))
				}
				for i, n := range dst {
					if n.ID != want[i] {
						t.Fatalf("point %d: neighbour %d has ID %d, want %d", self, i, n.ID, want[i])
					}
					if n.ID == int32(self) {
						t.Fatalf("point %d returned itself", self)
					}
					p := pts[n.ID]
					if p.Pop != pts[self].Pop {
						t.Fatalf("point %d returned %d from population %d", self, n.ID, p.Pop)
					}
					if n.Type != p.Type {
						t.Errorf("neighbour type: got %d, want %d", n.Type, p.Type)
					}
					if n.DistSq > tt.radius*tt.radius {
						t.Errorf("neighbour %d at distSq %v beyond radius", n.ID, n.DistSq)
					}
				}
			}
		})
	}
}

func TestTorusFindsAcrossEdge(t *testing.T) {
	extent := mgl32.Vec3{100, 100, 100}
	pts := []Point{
		{ID: 0, Pos: mgl32.Vec3{48, 0, 0}},
		{ID: 1, Pos: mgl32.Vec3{-48, 0, 0}},
		{ID: 2, Pos: mgl32.Vec3{0, 0, 0}},
	}
	idx := NewTorus(extent)
	idx.Rebuild(pts)

	got := idx.Query(nil, 0, 10)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("Query = %v, want only point 1", got)
	}
	if !got[0].Delta.ApproxEqualThreshold(mgl32.Vec3{4, 0, 0}, 1e-4) {
		t.Errorf("Delta = %v, want (4,0,0)", got[0].Delta)
	}

	grid := NewGrid(extent, 10)
	grid.Rebuild(pts)
	if got := grid.Query(nil, 0, 10); len(got) != 0 {
		t.Errorf("bounded grid should not wrap, got %v", got)
	}
}

func TestQueryEdgeCases(t *testing.T) {
	extent := mgl32.Vec3{100, 100, 100}
	for _, mode := range []Mode{Bounded, Toroidal} {
		t.Run(mode.String(), func(t *testing.T) {
			idx := New(mode, extent, 20)
			idx.Rebuild(nil)
			if got := idx.Query(nil, 0, 20); len(got) != 0 {
				t.Errorf("empty index returned %v", got)
			}

			idx.Rebuild([]Point{{ID: 0}, {ID: 1, Pop: 1}})
			if got := idx.Query(nil, 0, 20); len(got) != 0 {
				t.Errorf("lonely point returned %v", got)
			}
			if got := idx.Query(nil, 7, 20); len(got) != 0 {
				t.Errorf("unknown id returned %v", got)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"bounce", Bounded, false},
		{"teleport", Toroidal, false},
		{"torus", Toroidal, false},
		{"spiral", Bounded, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
