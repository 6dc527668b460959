package telemetry

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/pthm-cable/plife/genome"
)

// HallEntry is a genome that ranked highly in some epoch.
type HallEntry struct {
	Genome     *genome.Vector
	Fitness    float32 // combined fitness
	Score      float32
	Epoch      int
	Population int
}

// HallOfFame keeps the top genomes ever seen across epochs, ranked by
// combined fitness. It supplies reseeds for diversity injection.
type HallOfFame struct {
	hall    []HallEntry
	maxSize int
	rng     *rand.Rand
}

// NewHallOfFame creates a new hall of fame with the given capacity.
func NewHallOfFame(maxSize int, rng *rand.Rand) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		hall:    make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
		rng:     rng,
	}
}

// Consider offers a genome for entry. An identical genome already in the hall
// only has its entry replaced when the new fitness is higher.
// Returns true if the hall changed.
func (hof *HallOfFame) Consider(g *genome.Vector, fitness, score float32, epoch, population int) bool {
	if g == nil {
		return false
	}
	for i, e := range hof.hall {
		if e.Genome.Equal(g) {
			if fitness <= e.Fitness {
				return false
			}
			hof.hall = append(hof.hall[:i], hof.hall[i+1:]...)
			break
		}
	}

	entry := HallEntry{
		Genome:     g.Clone(),
		Fitness:    fitness,
		Score:      score,
		Epoch:      epoch,
		Population: population,
	}
	hof.hall = hof.insertEntry(hof.hall, entry)
	return hof.contains(entry.Genome)
}

func (hof *HallOfFame) contains(g *genome.Vector) bool {
	for _, e := range hof.hall {
		if e.Genome == g {
			return true
		}
	}
	return false
}

// insertEntry adds an entry to the hall, maintaining sorted order by fitness.
// If the hall is full, the lowest-fitness entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) []HallEntry {
	// Find insertion point (sorted descending by fitness)
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})

	// If hall is full and entry would be last (lowest), skip it
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}

	return hall
}

// Sample selects a genome from the hall using tournament selection.
// Returns nil if the hall is empty. The result is a copy with no history.
func (hof *HallOfFame) Sample() *genome.Vector {
	if hof == nil || len(hof.hall) == 0 {
		return nil
	}

	// Tournament selection with k=3
	const tournamentSize = 3
	var best *HallEntry

	for i := 0; i < tournamentSize && i < len(hof.hall); i++ {
		candidate := &hof.hall[hof.rng.Intn(len(hof.hall))]
		if best == nil || candidate.Fitness > best.Fitness {
			best = candidate
		}
	}

	g := best.Genome.Clone()
	g.FitnessHistory = nil
	return g
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	if hof == nil {
		return 0
	}
	return len(hof.hall)
}

// Entries returns the hall, best first. The slice must not be modified.
func (hof *HallOfFame) Entries() []HallEntry {
	if hof == nil {
		return nil
	}
	return hof.hall
}

// TopFitness returns the highest fitness in the hall, 0 if empty.
func (hof *HallOfFame) TopFitness() float32 {
	if hof.Size() == 0 {
		return 0
	}
	return hof.hall[0].Fitness
}

// hallEntryJSON is the JSON-serializable representation of a hall entry.
type hallEntryJSON struct {
	Epoch      int            `json:"epoch"`
	Population int            `json:"population"`
	Fitness    float32        `json:"fitness"`
	Score      float32        `json:"score"`
	Genome     *genome.Vector `json:"genome"`
}

// MarshalJSON serializes the hall of fame to JSON, best first.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	entries := make([]hallEntryJSON, len(hof.hall))
	for i, e := range hof.hall {
		entries[i] = hallEntryJSON{
			Epoch:      e.Epoch,
			Population: e.Population,
			Fitness:    e.Fitness,
			Score:      e.Score,
			Genome:     e.Genome,
		}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// LoadHallOfFameFromFile reads a hall of fame JSON file. Entries with
// malformed genomes are rejected.
func LoadHallOfFameFromFile(path string, maxSize int, rng *rand.Rand) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var raw []hallEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	hof := NewHallOfFame(max(maxSize, len(raw)), rng)
	for i, ej := range raw {
		if ej.Genome == nil {
			return nil, fmt.Errorf("hall of fame entry %d: %w: missing genome", i, genome.ErrShape)
		}
		if err := ej.Genome.Check(genome.MaxForce); err != nil {
			return nil, fmt.Errorf("hall of fame entry %d: %w", i, err)
		}
		ej.Genome.Refresh()
		hof.hall = hof.insertEntry(hof.hall, HallEntry{
			Genome:     ej.Genome,
			Fitness:    ej.Fitness,
			Score:      ej.Score,
			Epoch:      ej.Epoch,
			Population: ej.Population,
		})
	}
	return hof, nil
}
