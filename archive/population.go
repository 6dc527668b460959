// Package archive saves and loads populations: a genome with the score it
// earned and the run settings it earned it under. Documents are validated
// against an embedded JSON schema and kept in memory, a directory of JSON
// files or a SQLite database.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/genome"
)

// CurrentFormat is the format version written by this package. Documents
// without a version predate the two-regime force law and load as Stale.
const CurrentFormat = 1

// MaxValue bounds stored forces. It is wider than genome.MaxForce so that
// archives from older runs still load; values are clamped on use.
const MaxValue float32 = 3

// TimestampLayout formats SavedPopulation.Timestamp.
const TimestampLayout = "2006-01-02_15-04-05"

var (
	ErrNotFound = errors.New("population not found")
	ErrInvalid  = errors.New("invalid population")
)

// SavedPopulation is one archived population.
type SavedPopulation struct {
	FormatVersion int    `json:"format_version"`
	Name          string `json:"name"`
	Timestamp     string `json:"timestamp"`
	Description   string `json:"description,omitempty"`

	Genotype genome.Vector `json:"genotype"`
	Score    float32       `json:"score"`

	SimulationParams SimulationParams `json:"simulation_params"`
	GridParams       GridParams       `json:"grid_params"`
	FoodParams       FoodParams       `json:"food_params"`
	BoundaryMode     string           `json:"boundary_mode"`

	GeneticMetrics   GeneticMetrics   `json:"genetic_metrics"`
	EvolutionContext EvolutionContext `json:"evolution_context"`

	// Stale marks a document written under an older format. Its genome is
	// usable but its score must be re-earned.
	Stale bool `json:"-"`
}

type SimulationParams struct {
	ParticleCount    int     `json:"particle_count"`
	ParticleTypes    int     `json:"particle_types"`
	MaxForceRange    float32 `json:"max_force_range"`
	VelocityHalfLife float32 `json:"velocity_half_life"`
	EpochDuration    float32 `json:"epoch_duration"`
	EliteRatio       float32 `json:"elite_ratio"`
	MutationRate     float32 `json:"mutation_rate"`
	CrossoverRate    float32 `json:"crossover_rate"`
}

type GridParams struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
	Depth  float32 `json:"depth"`
}

type FoodParams struct {
	FoodCount       int     `json:"food_count"`
	RespawnEnabled  bool    `json:"respawn_enabled"`
	RespawnCooldown float32 `json:"respawn_cooldown"`
	FoodValue       float32 `json:"food_value"`
}

type GeneticMetrics struct {
	CoherenceScore        float32 `json:"coherence_score"`
	FitnessTrend          float32 `json:"fitness_trend"`
	Generation            int     `json:"generation"`
	RankInPopulation      int     `json:"rank_in_population"` // 0 is best
	PopulationSize        int     `json:"population_size"`
	DiversityContribution float32 `json:"diversity_contribution"`
}

type EvolutionContext struct {
	EpochNumber            int           `json:"epoch_number"`
	PopulationDiversity    float32       `json:"population_diversity"`
	AveragePopulationScore float32       `json:"average_population_score"`
	BestPopulationScore    float32       `json:"best_population_score"`
	ImprovementTrend       float32       `json:"improvement_trend"`
	GeneticConfig          GeneticConfig `json:"genetic_algorithm_config"`
}

type GeneticConfig struct {
	EliteRatio         float32 `json:"elite_ratio"`
	MutationRate       float32 `json:"mutation_rate"`
	CrossoverRate      float32 `json:"crossover_rate"`
	CoherenceThreshold float32 `json:"coherence_threshold"`
}

// Check enforces the genome shape, the stored value range and the
// coherence range.
func (p *SavedPopulation) Check() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if err := p.Genotype.Check(MaxValue); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, p.Name, err)
	}
	if c := p.Genotype.Coherence; c < 0 || c > 1 {
		return fmt.Errorf("%w: %s: coherence %v outside [0,1]", ErrInvalid, p.Name, c)
	}
	return nil
}

// RankKey orders archives for listing: 0.7*score + 30*coherence.
func (p *SavedPopulation) RankKey() float32 {
	return p.Score*0.7 + p.GeneticMetrics.CoherenceScore*30
}

// Genome returns a copy of the stored genome ready for a run: clamped to
// genome.MaxForce with coherence recomputed.
func (p *SavedPopulation) Genome() *genome.Vector {
	g := p.Genotype.Clone()
	g.ClampAll()
	g.Refresh()
	return g
}

// Teleport reports whether the population was evolved on a torus.
func (p *SavedPopulation) Teleport() bool {
	return strings.EqualFold(p.BoundaryMode, config.BoundaryTeleport)
}

// Decode validates data against the schema, unmarshals it and checks it.
// A stored coherence of exactly 0 is treated as unset and recomputed.
func Decode(data []byte) (*SavedPopulation, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	p := &SavedPopulation{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	if p.Genotype.Coherence == 0 {
		p.Genotype.Refresh()
		p.GeneticMetrics.CoherenceScore = p.Genotype.Coherence
	}
	p.BoundaryMode = strings.ToLower(p.BoundaryMode)
	p.Stale = p.FormatVersion < CurrentFormat
	return p, nil
}

// Encode checks p and returns its indented JSON. Documents are always
// written at CurrentFormat.
func Encode(p *SavedPopulation) ([]byte, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	out := *p
	out.FormatVersion = CurrentFormat
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", p.Name, err)
	}
	return data, nil
}
