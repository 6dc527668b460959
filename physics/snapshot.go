package physics

import (
	"fmt"
	"iter"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/genome"
)

// FoodItem is the read-only view of one food item during a step.
type FoodItem struct {
	Pos     mgl32.Vec3
	Visible bool
}

// Snapshot is the read-only state of one tick. Particle i is identified by
// its index; particles are ordered by population, then by slot. Executors
// write the new state into NextPos and NextVel.
type Snapshot struct {
	Pos    []mgl32.Vec3
	Vel    []mgl32.Vec3
	Type   []uint8
	Pop    []uint16
	Food   []FoodItem
	Tables []genome.Table // decoded force table by population

	NextPos []mgl32.Vec3
	NextVel []mgl32.Vec3
}

// Reset resizes the particle columns to n, reusing storage.
func (s *Snapshot) Reset(n int) {
	s.Pos = resizeVec(s.Pos, n)
	s.Vel = resizeVec(s.Vel, n)
	s.NextPos = resizeVec(s.NextPos, n)
	s.NextVel = resizeVec(s.NextVel, n)
	if cap(s.Type) < n {
		s.Type = make([]uint8, n)
		s.Pop = make([]uint16, n)
	}
	s.Type = s.Type[:n]
	s.Pop = s.Pop[:n]
	s.Food = s.Food[:0]
}

// Len returns the particle count.
func (s *Snapshot) Len() int { return len(s.Pos) }

// Check verifies column lengths and that every particle's population has a
// force table.
func (s *Snapshot) Check() error {
	n := len(s.Pos)
	if len(s.Vel) != n || len(s.Type) != n || len(s.Pop) != n || len(s.NextPos) != n || len(s.NextVel) != n {
		return fmt.Errorf("snapshot columns disagree on length %d", n)
	}
	for i, pop := range s.Pop {
		if int(pop) >= len(s.Tables) {
			return fmt.Errorf("particle %d: population %d has no force table", i, pop)
		}
	}
	return nil
}

// Swap makes the computed state current, so that Step can be called again
// on the same snapshot.
func (s *Snapshot) Swap() {
	s.Pos, s.NextPos = s.NextPos, s.Pos
	s.Vel, s.NextVel = s.NextVel, s.Vel
}

// Clone returns a deep copy, used to replay identical input through
// different executors.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Pos:     append([]mgl32.Vec3(nil), s.Pos...),
		Vel:     append([]mgl32.Vec3(nil), s.Vel...),
		Type:    append([]uint8(nil), s.Type...),
		Pop:     append([]uint16(nil), s.Pop...),
		Food:    append([]FoodItem(nil), s.Food...),
		Tables:  append([]genome.Table(nil), s.Tables...),
		NextPos: append([]mgl32.Vec3(nil), s.NextPos...),
		NextVel: append([]mgl32.Vec3(nil), s.NextVel...),
	}
	return c
}

// accumulate sums the pair and food terms for particle i over the given
// neighbours, which must be in ascending ID order.
func accumulate(p *Params, s *Snapshot, i int, neighbors iter.Seq2[mgl32.Vec3, uint8]) mgl32.Vec3 {
	table := &s.Tables[s.Pop[i]]
	self := int(s.Type[i])
	acc := interact(p, func(b int) float32 { return table.At(self, b) }, neighbors)
	return acc.Add(foodTerm(p, table.FoodAt(self), s.Pos[i], func(yield func(mgl32.Vec3) bool) {
		for _, f := range s.Food {
			if f.Visible && !yield(f.Pos) {
				return
			}
		}
	}))
}

// interact sums pair terms in iteration order. At most MaxInteractions
// in-range pairs are counted, all of them when it is not positive.
func interact(p *Params, attraction func(other int) float32, neighbors iter.Seq2[mgl32.Vec3, uint8]) mgl32.Vec3 {
	limit := p.MaxInteractions
	if limit <= 0 {
		limit = math.MaxInt
	}
	var acc mgl32.Vec3
	count := 0
	for rel, typ := range neighbors {
		if term, ok := PairTerm(p, rel, attraction(int(typ))); ok {
			acc = acc.Add(term)
			count++
			if count >= limit {
				break
			}
		}
	}
	return acc
}

// foodTerm sums the pull of every visible food position.
func foodTerm(p *Params, foodForce float32, pos mgl32.Vec3, food iter.Seq[mgl32.Vec3]) mgl32.Vec3 {
	var acc mgl32.Vec3
	if absf(foodForce) <= MinFoodForce {
		return acc
	}
	for fp := range food {
		acc = acc.Add(FoodPull(foodForce, p.Displacement(pos, fp), p.FoodRadius, p.MaxForceRange))
	}
	return acc
}

func resizeVec(v []mgl32.Vec3, n int) []mgl32.Vec3 {
	if cap(v) < n {
		return make([]mgl32.Vec3, n)
	}
	return v[:n]
}
