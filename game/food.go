package game

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/plife/components"
	"github.com/pthm-cable/plife/physics"
)

// FoodPool owns the shared food entities. Items keep their spawn order,
// which is the order collisions are resolved in.
type FoodPool struct {
	items  []ecs.Entity
	mapper *ecs.Map2[components.Position, components.Food]
	posMap *ecs.Map1[components.Position]
	food   *ecs.Map1[components.Food]

	value  float32
	extent mgl32.Vec3
}

func newFoodPool(world *ecs.World, count int, value float32, extent mgl32.Vec3, rng *rand.Rand) *FoodPool {
	fp := &FoodPool{
		items:  make([]ecs.Entity, 0, count),
		mapper: ecs.NewMap2[components.Position, components.Food](world),
		posMap: ecs.NewMap1[components.Position](world),
		food:   ecs.NewMap1[components.Food](world),
		value:  value,
		extent: extent,
	}
	for i := 0; i < count; i++ {
		pos := components.Position{Vec3: randomIn(extent, rng)}
		item := components.Food{Value: value, Visible: true}
		fp.items = append(fp.items, fp.mapper.NewEntity(&pos, &item))
	}
	return fp
}

// Len returns the number of food items, visible or not.
func (fp *FoodPool) Len() int { return len(fp.items) }

// Visible returns the number of items currently available.
func (fp *FoodPool) Visible() int {
	n := 0
	for _, e := range fp.items {
		if fp.food.Get(e).Visible {
			n++
		}
	}
	return n
}

// At returns the position and state of item i.
func (fp *FoodPool) At(i int) (mgl32.Vec3, components.Food) {
	e := fp.items[i]
	return fp.posMap.Get(e).Vec3, *fp.food.Get(e)
}

// fill appends every item to the snapshot in pool order.
func (fp *FoodPool) fill(s *physics.Snapshot) {
	for _, e := range fp.items {
		s.Food = append(s.Food, physics.FoodItem{
			Pos:     fp.posMap.Get(e).Vec3,
			Visible: fp.food.Get(e).Visible,
		})
	}
}

// advance counts down respawn timers and returns how many items reappeared.
func (fp *FoodPool) advance(dt float32) int {
	n := 0
	for _, e := range fp.items {
		if fp.food.Get(e).Advance(dt) {
			n++
		}
	}
	return n
}

// reset scatters every item to a new position and makes it visible.
func (fp *FoodPool) reset(rng *rand.Rand) {
	for _, e := range fp.items {
		fp.posMap.Get(e).Vec3 = randomIn(fp.extent, rng)
		*fp.food.Get(e) = components.Food{Value: fp.value, Visible: true}
	}
}

// randomIn samples uniformly in [-extent/2, extent/2) per axis.
func randomIn(extent mgl32.Vec3, rng *rand.Rand) mgl32.Vec3 {
	var v mgl32.Vec3
	for a := 0; a < 3; a++ {
		v[a] = (rng.Float32() - 0.5) * extent[a]
	}
	return v
}
