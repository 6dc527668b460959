// Package evolution turns one epoch's scores into the next generation of
// genomes: scoring, ranking by combined fitness, elitism, tournament
// selection, coherence-aware crossover, adaptive mutation and diversity
// injection.
package evolution

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/genome"
)

// ErrBusy is returned when Advance is re-entered before the previous
// transition finished.
var ErrBusy = errors.New("evolution engine not awaiting epoch end")

// Phase is the epoch-boundary state.
type Phase uint8

const (
	AwaitingEpochEnd Phase = iota
	Scoring
	Selecting
	Reproducing
	Reset
)

var phaseNames = [...]string{"awaiting_epoch_end", "scoring", "selecting", "reproducing", "reset"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

// Candidate is one population's genome and its accumulated epoch score.
type Candidate struct {
	Genome *genome.Vector
	Score  float32
}

// Reseeder supplies genomes for diversity injection, typically a hall of fame.
// Sample returns nil when it has nothing to offer.
type Reseeder interface {
	Sample() *genome.Vector
}

// Options are the genetic algorithm tunables, fixed for a run.
type Options struct {
	EliteRatio         float32
	MutationRate       float32
	CrossoverRate      float32
	CoherenceThreshold float32
	DiversityThreshold float32
	InjectionRatio     float32
	MutationRetries    int
	EliteMutation      float32
	MutationSigma      float32 // fraction of MaxForce
	Packed             bool    // breed through the packed codec

	TypeCount     int
	ParticleCount int
	Extent        mgl32.Vec3
}

// OptionsFrom extracts the engine options from a loaded config.
func OptionsFrom(cfg *config.Config) Options {
	g := cfg.Genetics
	return Options{
		EliteRatio:         float32(g.EliteRatio),
		MutationRate:       float32(g.MutationRate),
		CrossoverRate:      float32(g.CrossoverRate),
		CoherenceThreshold: float32(g.CoherenceThreshold),
		DiversityThreshold: float32(g.DiversityThreshold),
		InjectionRatio:     float32(g.InjectionRatio),
		MutationRetries:    g.MutationRetries,
		EliteMutation:      float32(g.EliteMutation),
		MutationSigma:      float32(g.MutationSigma),
		Packed:             g.Codec == config.CodecPacked,
		TypeCount:          cfg.Simulation.ParticleTypes,
		ParticleCount:      cfg.Simulation.ParticleCount,
		Extent:             cfg.Derived.Extent,
	}
}

// Generation is the result of one epoch transition.
type Generation struct {
	Epoch   int              // epoch that was scored
	Genomes []*genome.Vector // next genome per population slot
	Stats   EpochStats
	Fitness []float32 // combined fitness by candidate index
	Ranking []int     // candidate indices, best first

	Elites       int
	Crossovers   int
	Replaced     int // offspring replaced after exhausting mutation retries
	Injected     int
	MutationRate float32 // base rate after the diversity and stagnation factors

	Reset ResetPlan
}

// Engine is the epoch-boundary state machine. It is the sole writer of
// genomes and is never run concurrently with the physics step.
type Engine struct {
	opts  Options
	rng   *rand.Rand
	phase Phase
	epoch int

	prevBest float32
	hasPrev  bool
	stagnant int

	reseeder Reseeder
	observe  func(Phase)
}

// NewEngine creates an engine drawing all randomness from rng.
func NewEngine(opts Options, rng *rand.Rand) *Engine {
	return &Engine{opts: opts, rng: rng}
}

// StartAt numbers the next generation epoch, so a resumed run carries on
// from its checkpoint instead of counting from zero.
func (e *Engine) StartAt(epoch int) { e.epoch = epoch }

// SetReseeder makes diversity injection draw from r before falling back to
// random genomes.
func (e *Engine) SetReseeder(r Reseeder) { e.reseeder = r }

// Observe registers a callback invoked on every phase change.
func (e *Engine) Observe(fn func(Phase)) { e.observe = fn }

// Phase reports the current state.
func (e *Engine) Phase() Phase { return e.phase }

// Epoch returns the epoch the next Advance scores.
func (e *Engine) Epoch() int { return e.epoch }

// Stagnant returns the number of consecutive epochs without a new best score.
func (e *Engine) Stagnant() int { return e.stagnant }

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

func (e *Engine) enter(p Phase) {
	e.phase = p
	if e.observe != nil {
		e.observe(p)
	}
}

// Advance runs Scoring, Selecting, Reproducing and Reset over the epoch's
// candidates and returns to AwaitingEpochEnd. The generation always holds
// exactly len(cands) genomes. A candidate with a missing or malformed genome
// is a logic error and is reported without changing any state.
func (e *Engine) Advance(cands []Candidate) (*Generation, error) {
	if e.phase != AwaitingEpochEnd {
		return nil, ErrBusy
	}
	for i, c := range cands {
		if c.Genome == nil {
			return nil, fmt.Errorf("candidate %d: %w: nil genome", i, genome.ErrShape)
		}
		if err := c.Genome.Check(genome.MaxForce); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	defer e.enter(AwaitingEpochEnd)

	gen := &Generation{Epoch: e.epoch}

	e.enter(Scoring)
	for _, c := range cands {
		c.Genome.Refresh()
		c.Genome.RecordFitness(c.Score)
	}
	gen.Stats = Score(cands, e.prevBest)
	gen.Stats.Epoch = e.epoch
	if len(cands) > 0 {
		if e.hasPrev && gen.Stats.Best <= e.prevBest {
			e.stagnant++
		} else {
			e.stagnant = 0
		}
		e.prevBest = gen.Stats.Best
		e.hasPrev = true
	}

	e.enter(Selecting)
	gen.Fitness = CombinedFitness(cands, gen.Stats, e.opts.CoherenceThreshold)
	gen.Ranking = Rank(gen.Fitness)

	e.enter(Reproducing)
	e.reproduce(cands, gen)

	e.enter(Reset)
	gen.Reset = NewResetPlan(e.opts.ParticleCount, e.opts.Extent, e.rng)
	e.epoch++

	return gen, nil
}

// reproduce fills gen.Genomes: elites first, then offspring.
func (e *Engine) reproduce(cands []Candidate, gen *Generation) {
	n := len(cands)
	gen.Genomes = make([]*genome.Vector, 0, n)
	if n == 0 {
		return
	}

	elites := int(math.Ceil(float64(n) * float64(e.opts.EliteRatio)))
	if n == 1 {
		elites = 1
	}
	elites = min(elites, n)
	gen.Elites = elites

	for _, idx := range gen.Ranking[:elites] {
		g := cands[idx].Genome.Clone()
		if e.rng.Float32() < e.opts.EliteMutation {
			e.mutateGenes(g, e.opts.MutationRate*0.1)
			g.Refresh()
		}
		gen.Genomes = append(gen.Genomes, g)
	}

	gen.MutationRate = e.opts.MutationRate *
		diversityFactor(gen.Stats.Diversity, e.opts.DiversityThreshold) *
		stagnationFactor(e.stagnant)

	sel := newTournament(cands, gen.Ranking, e.opts.CoherenceThreshold)
	for len(gen.Genomes) < n {
		var child *genome.Vector
		if n >= 2 && e.rng.Float32() < e.opts.CrossoverRate {
			a, b := sel.pair(e.rng)
			child = e.crossover(cands[a].Genome, cands[b].Genome)
			gen.Crossovers++
		} else {
			child = cands[sel.pick(e.rng)].Genome.Clone()
		}
		if !e.mutate(child, gen.MutationRate) {
			child = e.random()
			gen.Replaced++
		}
		gen.Genomes = append(gen.Genomes, child)
	}

	if gen.Stats.Diversity < e.opts.DiversityThreshold {
		gen.Injected = e.inject(gen.Genomes[elites:])
	}
}

// inject replaces a share of the non-elite offspring with fresh genomes.
func (e *Engine) inject(offspring []*genome.Vector) int {
	if len(offspring) == 0 || e.opts.InjectionRatio <= 0 {
		return 0
	}
	k := int(math.Ceil(float64(len(offspring)) * float64(e.opts.InjectionRatio)))
	k = min(k, len(offspring))
	for _, slot := range e.rng.Perm(len(offspring))[:k] {
		var g *genome.Vector
		if e.reseeder != nil {
			g = e.reseeder.Sample()
			if g != nil && g.TypeCount != e.opts.TypeCount {
				g = nil
			}
		}
		if g == nil {
			g = e.random()
		}
		offspring[slot] = g
	}
	return k
}

// random draws a fresh genome in the configured codec.
func (e *Engine) random() *genome.Vector {
	if e.opts.Packed {
		return genome.RandomPacked(e.opts.TypeCount, e.rng).Vector()
	}
	return genome.Random(e.opts.TypeCount, e.rng)
}
