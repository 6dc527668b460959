package spatial

import (
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Torus indexes a wrap-around domain with one k-d tree per population.
// A query probes the 27 ghost translations of the query point, deduplicates
// by ID and re-validates each hit against the true toroidal distance.
type Torus struct {
	extent mgl32.Vec3
	ghosts [27]mgl32.Vec3

	pts   []Point
	ids   idLookup
	trees []*kdtree.Tree // by population, nil when empty
}

// NewTorus creates an index over a torus of the given extent centred on the origin.
func NewTorus(extent mgl32.Vec3) *Torus {
	return &Torus{extent: extent, ghosts: GhostOffsets(extent)}
}

// Rebuild wraps every point into the domain and builds the per-population trees.
func (t *Torus) Rebuild(pts []Point) {
	t.pts = pts
	t.ids.reset(pts)

	pops := 0
	for _, p := range pts {
		pops = max(pops, int(p.Pop)+1)
	}
	byPop := make([]treePoints, pops)
	for i, p := range pts {
		w := Wrap(p.Pos, t.extent)
		byPop[p.Pop] = append(byPop[p.Pop], treePoint{
			pos:  [3]float64{float64(w[0]), float64(w[1]), float64(w[2])},
			slot: int32(i),
		})
	}

	t.trees = t.trees[:0]
	for _, tp := range byPop {
		if len(tp) == 0 {
			t.trees = append(t.trees, nil)
			continue
		}
		t.trees = append(t.trees, kdtree.New(tp, false))
	}
}

// Query appends the same-population neighbours of self within radius.
func (t *Torus) Query(dst []Neighbor, self int32, radius float32) []Neighbor {
	slot := t.ids.slot(self)
	if slot < 0 {
		return dst
	}
	q := t.pts[slot]
	if int(q.Pop) >= len(t.trees) || t.trees[q.Pop] == nil {
		return dst
	}
	tree := t.trees[q.Pop]
	start := len(dst)

	origin := Wrap(q.Pos, t.extent)
	r2 := float64(radius) * float64(radius)
	keep := kdtree.NewDistKeeper(r2)

	for _, off := range t.ghosts {
		g := origin.Add(off)
		if !t.reaches(g, radius) {
			continue
		}
		keep.Heap = append(keep.Heap[:0], kdtree.ComparableDist{Dist: r2})
		tree.NearestSet(keep, treePoint{
			pos:  [3]float64{float64(g[0]), float64(g[1]), float64(g[2])},
			slot: -1,
		})
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue
			}
			s := c.Comparable.(treePoint).slot
			if int(s) == slot {
				continue
			}
			p := t.pts[s]
			dst = append(dst, Neighbor{ID: p.ID, Type: p.Type})
		}
	}

	// Ghosts can report the same point twice when the radius exceeds half
	// the extent; keep one and recompute its shortest displacement.
	found := dst[start:]
	sortByID(found)
	out := found[:0]
	radiusSq := radius * radius
	prev := int32(-1)
	for _, n := range found {
		if n.ID == prev {
			continue
		}
		prev = n.ID
		s := t.ids.slot(n.ID)
		d := TorusDirection(q.Pos, t.pts[s].Pos, t.extent)
		n.Delta = d
		n.DistSq = d.Dot(d)
		if n.DistSq <= radiusSq {
			out = append(out, n)
		}
	}
	return dst[:start+len(out)]
}

// reaches reports whether a sphere around the ghost point overlaps the domain.
func (t *Torus) reaches(g mgl32.Vec3, radius float32) bool {
	for i := 0; i < 3; i++ {
		half := t.extent[i] / 2
		if g[i]+radius < -half || g[i]-radius > half {
			return false
		}
	}
	return true
}

// treePoint is a kdtree.Comparable carrying its slot in the rebuilt slice.
type treePoint struct {
	pos  [3]float64
	slot int32
}

func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.pos[d] - c.(treePoint).pos[d]
}

func (p treePoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance, as kdtree.Point does.
func (p treePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(treePoint)
	var sum float64
	for i := range p.pos {
		d := p.pos[i] - q.pos[i]
		sum += d * d
	}
	return sum
}

type treePoints []treePoint

func (p treePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p treePoints) Len() int                       { return len(p) }
func (p treePoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}
func (p treePoints) Pivot(d kdtree.Dim) int {
	pl := treePlane{pts: p, dim: d}
	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

// treePlane orders points along one dimension for pivot selection.
type treePlane struct {
	pts treePoints
	dim kdtree.Dim
}

func (p treePlane) Len() int           { return len(p.pts) }
func (p treePlane) Less(i, j int) bool { return p.pts[i].pos[p.dim] < p.pts[j].pos[p.dim] }
func (p treePlane) Swap(i, j int)      { p.pts[i], p.pts[j] = p.pts[j], p.pts[i] }
func (p treePlane) Slice(start, end int) kdtree.SortSlicer {
	return treePlane{pts: p.pts[start:end], dim: p.dim}
}
