package game

import (
	"context"
	"fmt"

	"github.com/pthm-cable/plife/genome"
	"github.com/pthm-cable/plife/telemetry"
)

// Tick advances every population by one physical step. When the step
// completes an epoch, evolution runs before Tick returns.
func (r *Run) Tick() error {
	_, err := r.step()
	return err
}

// Frame runs Speed.Steps() whole ticks: none while paused.
func (r *Run) Frame() error {
	for i := 0; i < r.state.Speed.Steps(); i++ {
		if _, err := r.step(); err != nil {
			return err
		}
	}
	return nil
}

// RunEpochs ticks until n more epochs have completed, ignoring the speed
// setting. ctx is checked between epochs only, so an epoch is never cut
// short.
func (r *Run) RunEpochs(ctx context.Context, n int) error {
	for done := 0; done < n; {
		if err := ctx.Err(); err != nil {
			return err
		}
		ended, err := r.step()
		if err != nil {
			return err
		}
		if ended {
			done++
		}
	}
	return nil
}

// step runs one tick and reports whether it ended the epoch.
func (r *Run) step() (bool, error) {
	r.perf.StartTick()

	r.perf.StartPhase(telemetry.PhaseSnapshot)
	r.buildSnapshot()

	r.perf.StartPhase(telemetry.PhaseForces)
	if err := r.exec.Step(&r.snap); err != nil {
		r.perf.EndTick()
		return false, fmt.Errorf("epoch %d tick %d: %s step: %w", r.state.Epoch, r.state.ticks, r.exec.Name(), err)
	}

	r.perf.StartPhase(telemetry.PhaseApply)
	r.applySnapshot()

	r.perf.StartPhase(telemetry.PhaseFood)
	r.collideFood()
	dt := r.cfg.Derived.DT32
	r.food.advance(dt)

	r.state.ticks++
	r.state.Elapsed = float32(r.state.ticks) * dt
	r.simTime += float64(dt)

	ended := false
	if r.state.ticks >= r.cfg.Derived.TicksPerEpoch {
		r.perf.StartPhase(telemetry.PhaseEvolution)
		if err := r.endEpoch(); err != nil {
			r.perf.EndTick()
			return false, err
		}
		ended = true
	}

	r.perf.EndTick()
	return ended, nil
}

// buildSnapshot copies particle state into the snapshot. Particle p of
// population q sits at index q*particle_count + slot, whatever order the
// query yields entities in.
func (r *Run) buildSnapshot() {
	count := r.cfg.Simulation.ParticleCount
	s := &r.snap
	s.Reset(len(r.pops) * count)

	query := r.particleFilter.Query()
	for query.Next() {
		pos, vel, part, mem := query.Get()
		i := int(mem.Population)*count + int(part.Slot)
		s.Pos[i] = pos.Vec3
		s.Vel[i] = vel.Vec3
		s.Type[i] = part.Type
		s.Pop[i] = mem.Population
	}

	if r.tablesDirty || len(s.Tables) != len(r.pops) {
		s.Tables = s.Tables[:0]
		for _, p := range r.pops {
			s.Tables = append(s.Tables, genome.TableOf(p.Genome))
		}
		r.tablesDirty = false
	}

	r.food.fill(s)
}

// applySnapshot writes the executor's output back to the components.
func (r *Run) applySnapshot() {
	count := r.cfg.Simulation.ParticleCount
	s := &r.snap

	query := r.particleFilter.Query()
	for query.Next() {
		pos, vel, part, mem := query.Get()
		i := int(mem.Population)*count + int(part.Slot)
		pos.Vec3 = s.NextPos[i]
		vel.Vec3 = s.NextVel[i]
	}
}

// collideFood resolves food in pool order. Each visible item goes to the
// first particle, in index order, within reach of it.
func (r *Run) collideFood() {
	reach := r.params.ParticleRadius + r.params.FoodRadius
	reachSq := reach * reach
	cooldown := float32(0)
	if r.cfg.Food.RespawnEnabled {
		cooldown = r.cfg.Derived.FoodCooldown32
	}

	s := &r.snap
	for _, e := range r.food.items {
		item := r.food.food.Get(e)
		if !item.Visible {
			continue
		}
		at := r.food.posMap.Get(e).Vec3
		for i, p := range s.NextPos {
			d := r.params.Displacement(p, at)
			if d.Dot(d) >= reachSq {
				continue
			}
			r.pops[s.Pop[i]].Score += item.Value
			item.Eaten(cooldown)
			r.foodEaten++
			break
		}
	}
}
