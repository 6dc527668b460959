package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/plife/genome"
)

// Population is one independent simulation: a genome, the particles it
// drives and the score accumulated this epoch.
type Population struct {
	ID        int
	Genome    *genome.Vector
	Score     float32
	Particles []ecs.Entity // by slot; type = slot mod type count

	// Last is the result of the most recent completed epoch, nil before
	// the first one ends.
	Last *Result
}

// Result records how a genome did in one epoch.
type Result struct {
	Epoch   int
	Genome  *genome.Vector // the genome that earned Score
	Score   float32
	Fitness float32 // combined fitness
	Rank    int     // 0 is best
}

// slotType returns the particle type for a slot.
func slotType(slot, types int) uint8 {
	return uint8(slot % types)
}
