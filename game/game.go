// Package game runs the populations: an ark world holding every particle
// and food item, the per-tick physics hand-off to the active executor, food
// scoring, the epoch timer and the evolution step at each epoch boundary.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/plife/components"
	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/evolution"
	"github.com/pthm-cable/plife/genome"
	"github.com/pthm-cable/plife/physics"
	"github.com/pthm-cable/plife/telemetry"
)

// Options configures a run beyond the loaded config.
type Options struct {
	Seed     int64
	Executor string           // overrides simulation.executor when set
	Seeds    []*genome.Vector // initial genomes, cycled over populations
	Speed    Speed

	// StartEpoch numbers the first epoch; a run resumed from a checkpoint
	// passes the checkpoint's epoch.
	StartEpoch int

	Output          *telemetry.OutputManager // nil disables file output
	Hall            *telemetry.HallOfFame    // created from config when nil
	LogEpochs       bool
	CheckpointEvery int // epochs between checkpoints, 0 disables

	// OnEpoch is called after every epoch transition.
	OnEpoch func(EpochReport)
}

// EpochReport summarises one epoch transition.
type EpochReport struct {
	Generation *evolution.Generation
	Stats      telemetry.EpochStats
	Results    []Result // by population
}

// Run holds the complete simulation state.
type Run struct {
	cfg  *config.Config
	seed int64
	rng  *rand.Rand

	world          *ecs.World
	particleMapper *ecs.Map4[components.Position, components.Velocity, components.Particle, components.Member]
	particleFilter *ecs.Filter4[components.Position, components.Velocity, components.Particle, components.Member]

	pops  []*Population
	food  *FoodPool
	state EpochState

	params      physics.Params
	exec        physics.ForceExecutor
	snap        physics.Snapshot
	tablesDirty bool

	engine    *evolution.Engine
	hall      *telemetry.HallOfFame
	bookmarks *telemetry.BookmarkDetector
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager

	logEpochs       bool
	checkpointEvery int
	onEpoch         func(EpochReport)

	simTime   float64
	foodEaten int
	lastGen   *evolution.Generation
	closed    bool
}

// New builds the world, spawns every population and the food pool, and
// opens the executor.
func New(cfg *config.Config, opts Options) (*Run, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	sim := cfg.Simulation
	if sim.ParticleTypes > math.MaxUint8 || sim.SimulationCount > math.MaxUint16 || sim.ParticleCount > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d populations of %d particles with %d types",
			config.ErrInvalid, sim.SimulationCount, sim.ParticleCount, sim.ParticleTypes)
	}
	for i, g := range opts.Seeds {
		if err := checkGenome(g, sim.ParticleTypes); err != nil {
			return nil, fmt.Errorf("seed genome %d: %w", i, err)
		}
	}

	if opts.StartEpoch < 0 {
		return nil, fmt.Errorf("negative start epoch %d", opts.StartEpoch)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	world := ecs.NewWorld()

	r := &Run{
		cfg:             cfg,
		seed:            opts.Seed,
		rng:             rng,
		world:           world,
		particleMapper:  ecs.NewMap4[components.Position, components.Velocity, components.Particle, components.Member](world),
		particleFilter:  ecs.NewFilter4[components.Position, components.Velocity, components.Particle, components.Member](world),
		params:          physics.ParamsFrom(cfg),
		state:           EpochState{Epoch: opts.StartEpoch, Duration: float32(cfg.Derived.TicksPerEpoch) * cfg.Derived.DT32, Speed: opts.Speed},
		tablesDirty:     true,
		engine:          evolution.NewEngine(evolution.OptionsFrom(cfg), rng),
		bookmarks:       telemetry.NewBookmarkDetector(10, cfg.Genetics.DiversityThreshold),
		perf:            telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		output:          opts.Output,
		logEpochs:       opts.LogEpochs,
		checkpointEvery: opts.CheckpointEvery,
		onEpoch:         opts.OnEpoch,
	}

	r.hall = opts.Hall
	if r.hall == nil {
		r.hall = telemetry.NewHallOfFame(cfg.HallOfFame.Size, rng)
	}
	r.engine.StartAt(opts.StartEpoch)
	if cfg.HallOfFame.Reseed {
		r.engine.SetReseeder(r.hall)
	}

	r.spawnPopulations(opts.Seeds)
	r.food = newFoodPool(world, cfg.Food.Count, cfg.Derived.FoodValue32, cfg.Derived.Extent, rng)

	kind := cfg.Simulation.Executor
	if opts.Executor != "" {
		kind = opts.Executor
	}
	exec, err := physics.NewExecutor(kind, r.params, cfg.Simulation.Workers)
	if err != nil {
		return nil, err
	}
	r.exec = exec

	slog.Info("run started",
		"seed", opts.Seed,
		"populations", len(r.pops),
		"particles", sim.ParticleCount,
		"types", sim.ParticleTypes,
		"food", r.food.Len(),
		"executor", exec.Name(),
		"boundary", cfg.Grid.Boundary,
		"ticks_per_epoch", cfg.Derived.TicksPerEpoch,
	)
	return r, nil
}

// spawnPopulations creates every particle at the shared initial layout.
func (r *Run) spawnPopulations(seeds []*genome.Vector) {
	sim := r.cfg.Simulation
	layout := evolution.NewResetPlan(sim.ParticleCount, r.cfg.Derived.Extent, r.rng)

	r.pops = make([]*Population, sim.SimulationCount)
	for p := range r.pops {
		var g *genome.Vector
		if len(seeds) > 0 {
			g = seeds[p%len(seeds)].Clone()
			g.Refresh()
		} else {
			g = r.randomGenome()
		}
		pop := &Population{ID: p, Genome: g, Particles: make([]ecs.Entity, sim.ParticleCount)}

		for slot := range pop.Particles {
			pos := components.Position{Vec3: layout.At(slot)}
			vel := components.Velocity{}
			part := components.Particle{Type: slotType(slot, sim.ParticleTypes), Slot: uint16(slot)}
			mem := components.Member{Population: uint16(p)}
			pop.Particles[slot] = r.particleMapper.NewEntity(&pos, &vel, &part, &mem)
		}
		r.pops[p] = pop
	}
}

func (r *Run) randomGenome() *genome.Vector {
	types := r.cfg.Simulation.ParticleTypes
	if r.cfg.Genetics.Codec == config.CodecPacked {
		return genome.RandomPacked(types, r.rng).Vector()
	}
	return genome.Random(types, r.rng)
}

func checkGenome(g *genome.Vector, types int) error {
	if g == nil {
		return fmt.Errorf("%w: nil genome", genome.ErrShape)
	}
	if g.TypeCount != types {
		return fmt.Errorf("%w: %d types, run has %d", genome.ErrShape, g.TypeCount, types)
	}
	return g.Check(genome.MaxForce)
}

// ReplaceGenome swaps the genome of population pop. It takes effect from the
// next tick; the population's score so far is kept.
func (r *Run) ReplaceGenome(pop int, g *genome.Vector) error {
	if pop < 0 || pop >= len(r.pops) {
		return fmt.Errorf("population %d out of range [0,%d)", pop, len(r.pops))
	}
	if err := checkGenome(g, r.cfg.Simulation.ParticleTypes); err != nil {
		return fmt.Errorf("population %d: %w", pop, err)
	}
	c := g.Clone()
	c.Refresh()
	r.pops[pop].Genome = c
	r.tablesDirty = true
	return nil
}

// Populations returns the live populations, indexed by ID.
func (r *Run) Populations() []*Population { return r.pops }

// Food returns the shared food pool.
func (r *Run) Food() *FoodPool { return r.food }

// Epoch returns the current epoch timer.
func (r *Run) Epoch() EpochState { return r.state }

// SetSpeed sets the ticks run per Frame.
func (r *Run) SetSpeed(s Speed) { r.state.Speed = s }

// Config returns the run's configuration.
func (r *Run) Config() *config.Config { return r.cfg }

// Seed returns the seed the run was created with.
func (r *Run) Seed() int64 { return r.seed }

// Hall returns the hall of fame.
func (r *Run) Hall() *telemetry.HallOfFame { return r.hall }

// LastGeneration returns the most recent epoch transition, nil before the
// first one.
func (r *Run) LastGeneration() *evolution.Generation { return r.lastGen }

// Best returns the top-ranked result of the last completed epoch.
func (r *Run) Best() (*Population, bool) {
	for _, p := range r.pops {
		if p.Last != nil && p.Last.Rank == 0 {
			return p, true
		}
	}
	return nil, false
}

// Close writes the final artifacts and releases the executor. The output
// manager is left open for its owner to close.
func (r *Run) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.output.WriteHallOfFame(r.hall); err != nil {
		errs = append(errs, err)
	}
	if err := r.output.WriteFitnessPlot(); err != nil {
		errs = append(errs, fmt.Errorf("writing fitness plot: %w", err))
	}
	if err := r.exec.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing executor: %w", err))
	}
	return errors.Join(errs...)
}
