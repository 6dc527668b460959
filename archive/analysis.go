package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/plife/genome"
)

// strongForce separates strong interactions from neutral ones.
const strongForce = 0.5

// Analysis describes the behaviour a saved genome is likely to produce.
type Analysis struct {
	TotalInteractions   int
	StrongAttractions   int
	StrongRepulsions    int
	NeutralInteractions int
	FoodAttractionRatio float32
	Complexity          float32
	Behaviours          []string
}

// Analyze counts the off-diagonal interactions by strength and summarises
// the food affinities.
func Analyze(p *SavedPopulation) Analysis {
	g := &p.Genotype
	var a Analysis
	n := g.TypeCount
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			a.TotalInteractions++
			switch f := g.DecodeForce(i, j); {
			case f > strongForce:
				a.StrongAttractions++
			case f < -strongForce:
				a.StrongRepulsions++
			default:
				a.NeutralInteractions++
			}
		}
	}

	if len(g.FoodForces) > 0 {
		positive := 0
		for _, f := range g.FoodForces {
			if f > 0 {
				positive++
			}
		}
		a.FoodAttractionRatio = float32(positive) / float32(len(g.FoodForces))
	}
	a.Complexity = genome.Complexity(g)
	a.Behaviours = genome.PredictBehaviours(g)
	return a
}

// Summary renders a short human-readable description.
func Summary(p *SavedPopulation) string {
	a := Analyze(p)
	var b strings.Builder
	fmt.Fprintf(&b, "Population %q (epoch %d, rank %d/%d)", p.Name,
		p.EvolutionContext.EpochNumber, p.GeneticMetrics.RankInPopulation+1, p.GeneticMetrics.PopulationSize)
	if p.Stale {
		b.WriteString(" [stale]")
	}
	fmt.Fprintf(&b, "\nScore: %.1f | Coherence: %.2f | Trend: %.1f\n",
		p.Score, p.GeneticMetrics.CoherenceScore, p.GeneticMetrics.FitnessTrend)
	fmt.Fprintf(&b, "Interactions: %d strong attractions, %d strong repulsions\n",
		a.StrongAttractions, a.StrongRepulsions)
	fmt.Fprintf(&b, "Complexity: %.2f | Food attraction: %.0f%%\n",
		a.Complexity, a.FoodAttractionRatio*100)
	fmt.Fprintf(&b, "Predicted behaviours: %s", strings.Join(a.Behaviours, ", "))
	return b.String()
}

// statsRow is one line of the statistics export.
type statsRow struct {
	Name           string  `csv:"name"`
	Timestamp      string  `csv:"timestamp"`
	Score          float32 `csv:"score"`
	Coherence      float32 `csv:"coherence"`
	FitnessTrend   float32 `csv:"fitness_trend"`
	Rank           int     `csv:"rank"`
	PopulationSize int     `csv:"population_size"`
	Epoch          int     `csv:"epoch"`
	Diversity      float32 `csv:"diversity"`
	Complexity     float32 `csv:"complexity"`
	Attractions    int     `csv:"attractions"`
	Repulsions     int     `csv:"repulsions"`
	Stale          bool    `csv:"stale"`
}

// ExportCSV writes one statistics row per population, with a header.
func ExportCSV(w io.Writer, pops []*SavedPopulation) error {
	rows := make([]statsRow, 0, len(pops))
	for _, p := range pops {
		a := Analyze(p)
		rows = append(rows, statsRow{
			Name:           p.Name,
			Timestamp:      p.Timestamp,
			Score:          p.Score,
			Coherence:      p.GeneticMetrics.CoherenceScore,
			FitnessTrend:   p.GeneticMetrics.FitnessTrend,
			Rank:           p.GeneticMetrics.RankInPopulation + 1,
			PopulationSize: p.GeneticMetrics.PopulationSize,
			Epoch:          p.EvolutionContext.EpochNumber,
			Diversity:      p.EvolutionContext.PopulationDiversity,
			Complexity:     a.Complexity,
			Attractions:    a.StrongAttractions,
			Repulsions:     a.StrongRepulsions,
			Stale:          p.Stale,
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("exporting statistics: %w", err)
	}
	return nil
}
