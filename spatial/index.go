// Package spatial answers "which particles of the same population lie within
// radius R of this one" for a bounded box or a toroidal domain centred on
// the origin.
package spatial

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Point is one particle as seen by the index.
type Point struct {
	ID   int32
	Pop  uint16
	Type uint8
	Pos  mgl32.Vec3
}

// Neighbor is a query result. Delta is the displacement from the query point
// to the neighbour, shortest-path in toroidal mode.
type Neighbor struct {
	ID     int32
	Type   uint8
	Delta  mgl32.Vec3
	DistSq float32
}

// Index is rebuilt once per tick and then queried concurrently.
// Query appends to dst the neighbours of point self within radius, never
// including self or points of another population, sorted by ID.
type Index interface {
	Rebuild(pts []Point)
	Query(dst []Neighbor, self int32, radius float32) []Neighbor
}

// Mode is the boundary topology.
type Mode uint8

const (
	Bounded Mode = iota
	Toroidal
)

func (m Mode) String() string {
	if m == Toroidal {
		return "toroidal"
	}
	return "bounded"
}

// ParseMode maps a configured boundary policy to a topology.
func ParseMode(boundary string) (Mode, error) {
	switch boundary {
	case "bounce", "bounded":
		return Bounded, nil
	case "teleport", "toroidal", "torus":
		return Toroidal, nil
	}
	return Bounded, fmt.Errorf("unknown boundary mode %q", boundary)
}

// New returns a Grid for bounded domains and a Torus for toroidal ones.
// cell is the grid cell edge, normally the interaction radius.
func New(mode Mode, extent mgl32.Vec3, cell float32) Index {
	if mode == Toroidal {
		return NewTorus(extent)
	}
	return NewGrid(extent, cell)
}

// idLookup maps point IDs to their slot in the last rebuilt slice.
type idLookup []int32

func (l *idLookup) reset(pts []Point) {
	maxID := int32(-1)
	for _, p := range pts {
		maxID = max(maxID, p.ID)
	}
	need := int(maxID) + 1
	if cap(*l) < need {
		*l = make(idLookup, need)
	}
	*l = (*l)[:need]
	for i := range *l {
		(*l)[i] = -1
	}
	for i, p := range pts {
		if p.ID >= 0 {
			(*l)[p.ID] = int32(i)
		}
	}
}

func (l idLookup) slot(id int32) int {
	if id < 0 || int(id) >= len(l) {
		return -1
	}
	return int(l[id])
}

func sortByID(ns []Neighbor) {
	slices.SortFunc(ns, func(a, b Neighbor) int { return cmp.Compare(a.ID, b.ID) })
}
