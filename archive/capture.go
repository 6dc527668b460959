package archive

import (
	"fmt"
	"slices"
	"time"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/game"
	"github.com/pthm-cable/plife/genome"
)

// Capture builds a SavedPopulation from population pop of a run. Once an
// epoch has completed, it records the genome and score of that epoch;
// before that, the live genome and the score so far.
func Capture(run *game.Run, pop int, name, description string, now time.Time) (*SavedPopulation, error) {
	pops := run.Populations()
	if pop < 0 || pop >= len(pops) {
		return nil, fmt.Errorf("population %d out of range [0,%d)", pop, len(pops))
	}

	genomes := make([]*genome.Vector, len(pops))
	scores := make([]float32, len(pops))
	for i, p := range pops {
		genomes[i], scores[i] = p.Genome, p.Score
		if p.Last != nil {
			genomes[i], scores[i] = p.Last.Genome, p.Last.Score
		}
	}

	target := pops[pop]
	g := genomes[pop].Clone()
	g.Refresh()
	score := scores[pop]

	rank := 0
	epoch := run.Epoch().Epoch
	if target.Last != nil {
		rank = target.Last.Rank
		epoch = target.Last.Epoch
	} else {
		for _, s := range scores {
			if s > score {
				rank++
			}
		}
	}

	var mean, best float32
	if len(scores) > 0 {
		for _, s := range scores {
			mean += s
		}
		mean /= float32(len(scores))
		best = slices.Max(scores)
	}

	cfg := run.Config()
	sp := &SavedPopulation{
		FormatVersion: CurrentFormat,
		Name:          name,
		Timestamp:     now.UTC().Format(TimestampLayout),
		Description:   description,
		Genotype:      *g,
		Score:         score,
		BoundaryMode:  cfg.Grid.Boundary,
		GeneticMetrics: GeneticMetrics{
			CoherenceScore:        g.Coherence,
			FitnessTrend:          g.FitnessTrend(),
			Generation:            epoch,
			RankInPopulation:      rank,
			PopulationSize:        len(pops),
			DiversityContribution: genome.DiversityContribution(g),
		},
		EvolutionContext: EvolutionContext{
			EpochNumber:            epoch,
			PopulationDiversity:    genome.Diversity(genomes),
			AveragePopulationScore: mean,
			BestPopulationScore:    best,
			ImprovementTrend:       score - mean,
		},
	}
	sp.RecordParams(cfg)

	if err := sp.Check(); err != nil {
		return nil, err
	}
	return sp, nil
}

// RecordParams copies the run settings of cfg into the population.
func (p *SavedPopulation) RecordParams(cfg *config.Config) {
	s, gen := cfg.Simulation, cfg.Genetics
	p.SimulationParams = SimulationParams{
		ParticleCount:    s.ParticleCount,
		ParticleTypes:    s.ParticleTypes,
		MaxForceRange:    float32(s.MaxForceRange),
		VelocityHalfLife: float32(s.VelocityHalfLife),
		EpochDuration:    float32(s.EpochDuration),
		EliteRatio:       float32(gen.EliteRatio),
		MutationRate:     float32(gen.MutationRate),
		CrossoverRate:    float32(gen.CrossoverRate),
	}
	p.GridParams = GridParams{
		Width:  float32(cfg.Grid.Width),
		Height: float32(cfg.Grid.Height),
		Depth:  float32(cfg.Grid.Depth),
	}
	p.FoodParams = FoodParams{
		FoodCount:       cfg.Food.Count,
		RespawnEnabled:  cfg.Food.RespawnEnabled,
		RespawnCooldown: float32(cfg.Food.RespawnCooldown),
		FoodValue:       float32(cfg.Food.Value),
	}
	p.EvolutionContext.GeneticConfig = GeneticConfig{
		EliteRatio:         float32(gen.EliteRatio),
		MutationRate:       float32(gen.MutationRate),
		CrossoverRate:      float32(gen.CrossoverRate),
		CoherenceThreshold: float32(gen.CoherenceThreshold),
	}
}

// ApplyTo copies the archived run settings onto cfg and refreshes it.
func (p *SavedPopulation) ApplyTo(cfg *config.Config) error {
	sp := p.SimulationParams
	if sp.ParticleTypes > 0 {
		cfg.Simulation.ParticleTypes = sp.ParticleTypes
	}
	if sp.ParticleCount > 0 {
		cfg.Simulation.ParticleCount = sp.ParticleCount
	}
	if sp.MaxForceRange > 0 {
		cfg.Simulation.MaxForceRange = float64(sp.MaxForceRange)
	}
	if sp.VelocityHalfLife > 0 {
		cfg.Simulation.VelocityHalfLife = float64(sp.VelocityHalfLife)
	}
	if sp.EpochDuration > 0 {
		cfg.Simulation.EpochDuration = float64(sp.EpochDuration)
	}
	if g := p.GridParams; g.Width > 0 && g.Height > 0 && g.Depth > 0 {
		cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.Depth = float64(g.Width), float64(g.Height), float64(g.Depth)
	}
	f := p.FoodParams
	cfg.Food.Count = f.FoodCount
	cfg.Food.RespawnEnabled = f.RespawnEnabled
	cfg.Food.RespawnCooldown = float64(f.RespawnCooldown)
	if f.FoodValue != 0 {
		cfg.Food.Value = float64(f.FoodValue)
	}
	if p.BoundaryMode != "" {
		cfg.Grid.Boundary = p.BoundaryMode
	}
	if err := cfg.Refresh(); err != nil {
		return fmt.Errorf("applying %s: %w", p.Name, err)
	}
	return nil
}
