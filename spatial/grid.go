package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Grid provides neighbour lookups in a bounded box using uniform cells keyed
// by (population, cell). Points outside the box are clamped into edge cells.
type Grid struct {
	cellSize float32
	dims     [3]int
	half     mgl32.Vec3
	pops     int

	pts   []Point
	ids   idLookup
	cells [][]int32 // flat (pop, z, y, x) grid of slots into pts
}

// NewGrid creates a grid covering a box of the given extent centred on the origin.
func NewGrid(extent mgl32.Vec3, cellSize float32) *Grid {
	if cellSize <= 0 {
		cellSize = max(extent[0], extent[1], extent[2], 1)
	}
	g := &Grid{cellSize: cellSize, half: extent.Mul(0.5)}
	for i := 0; i < 3; i++ {
		g.dims[i] = max(int(math.Ceil(float64(extent[i]/cellSize))), 1)
	}
	return g
}

// Clear removes all points from the grid.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.pts = g.pts[:0]
}

// Rebuild replaces the grid contents. pts is retained until the next Rebuild.
func (g *Grid) Rebuild(pts []Point) {
	g.Clear()
	pops := 0
	for _, p := range pts {
		pops = max(pops, int(p.Pop)+1)
	}
	perPop := g.dims[0] * g.dims[1] * g.dims[2]
	if pops != g.pops {
		g.pops = pops
		g.cells = make([][]int32, pops*perPop)
		for i := range g.cells {
			g.cells[i] = make([]int32, 0, 8)
		}
	}

	g.pts = pts
	g.ids.reset(pts)
	for i, p := range pts {
		cx, cy, cz := g.cellOf(p.Pos)
		idx := g.cellIndex(int(p.Pop), cx, cy, cz)
		g.cells[idx] = append(g.cells[idx], int32(i))
	}
}

// Query appends the same-population neighbours of self within radius.
func (g *Grid) Query(dst []Neighbor, self int32, radius float32) []Neighbor {
	slot := g.ids.slot(self)
	if slot < 0 {
		return dst
	}
	q := g.pts[slot]
	start := len(dst)

	reach := max(int(math.Ceil(float64(radius/g.cellSize))), 1)
	cx, cy, cz := g.cellOf(q.Pos)
	radiusSq := radius * radius

	for z := max(cz-reach, 0); z <= min(cz+reach, g.dims[2]-1); z++ {
		for y := max(cy-reach, 0); y <= min(cy+reach, g.dims[1]-1); y++ {
			for x := max(cx-reach, 0); x <= min(cx+reach, g.dims[0]-1); x++ {
				for _, s := range g.cells[g.cellIndex(int(q.Pop), x, y, z)] {
					if int(s) == slot {
						continue
					}
					p := g.pts[s]
					d := p.Pos.Sub(q.Pos)
					distSq := d.Dot(d)
					if distSq <= radiusSq {
						dst = append(dst, Neighbor{ID: p.ID, Type: p.Type, Delta: d, DistSq: distSq})
					}
				}
			}
		}
	}

	sortByID(dst[start:])
	return dst
}

func (g *Grid) cellOf(p mgl32.Vec3) (int, int, int) {
	var c [3]int
	for i := 0; i < 3; i++ {
		v := int(math.Floor(float64((p[i] + g.half[i]) / g.cellSize)))
		// Clamp to valid range
		if v < 0 {
			v = 0
		} else if v >= g.dims[i] {
			v = g.dims[i] - 1
		}
		c[i] = v
	}
	return c[0], c[1], c[2]
}

func (g *Grid) cellIndex(pop, x, y, z int) int {
	return ((pop*g.dims[2]+z)*g.dims[1]+y)*g.dims[0] + x
}
