package game

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/evolution"
)

// endEpoch hands the epoch's scores to the engine, installs the next
// generation and resets particles and food.
func (r *Run) endEpoch() error {
	cands := make([]evolution.Candidate, len(r.pops))
	scores := make([]float32, len(r.pops))
	for i, p := range r.pops {
		cands[i] = evolution.Candidate{Genome: p.Genome, Score: p.Score}
		scores[i] = p.Score
	}

	gen, err := r.engine.Advance(cands)
	if err != nil {
		return fmt.Errorf("epoch %d: %w", r.state.Epoch, err)
	}

	results := make([]Result, len(r.pops))
	for rank, idx := range gen.Ranking {
		p := r.pops[idx]
		results[idx] = Result{
			Epoch:   gen.Epoch,
			Genome:  p.Genome,
			Score:   p.Score,
			Fitness: gen.Fitness[idx],
			Rank:    rank,
		}
		res := results[idx]
		p.Last = &res
		r.hall.Consider(p.Genome, gen.Fitness[idx], p.Score, gen.Epoch, p.ID)
	}

	r.recordEpoch(gen, scores, results)

	for i, p := range r.pops {
		p.Genome = gen.Genomes[i]
	}
	r.tablesDirty = true
	r.reset(gen.Reset)
	r.lastGen = gen

	r.state.Epoch++
	r.state.ticks = 0
	r.state.Elapsed = 0
	return nil
}

// reset places slot i of every population at the plan's i-th position with
// zero velocity, clears scores and scatters the food.
func (r *Run) reset(plan evolution.ResetPlan) {
	query := r.particleFilter.Query()
	for query.Next() {
		pos, vel, part, _ := query.Get()
		pos.Vec3 = plan.At(int(part.Slot))
		vel.Vec3 = mgl32.Vec3{}
	}
	for _, p := range r.pops {
		p.Score = 0
	}
	r.food.reset(r.rng)
	r.foodEaten = 0
}
