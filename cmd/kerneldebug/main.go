// Kernel debug tool - replays one random snapshot through the cpu and gpu
// executors and reports how far they drift apart.
//
// Usage: go run -tags glcompute,opengl43 ./cmd/kerneldebug -steps 100 -out drift.csv
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/genome"
	"github.com/pthm-cable/plife/physics"
)

// driftRow is one step of the comparison.
type driftRow struct {
	Step        int     `csv:"step"`
	MaxPosDrift float64 `csv:"max_pos_drift"`
	MaxVelDrift float64 `csv:"max_vel_drift"`
	WorstIndex  int     `csv:"worst_index"`
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	steps := flag.Int("steps", 100, "Steps to replay")
	seed := flag.Int64("seed", 1, "Seed for the snapshot and genomes")
	tolerance := flag.Float64("tolerance", 1e-3, "Relative drift reported as a failure")
	outPath := flag.String("out", "", "Write per-step drift as CSV (empty = stdout summary only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	p := physics.ParamsFrom(cfg)
	base := randomSnapshot(rand.New(rand.NewSource(*seed)), cfg, p)

	cpu, err := physics.NewExecutor(config.ExecutorCPU, p, cfg.Simulation.Workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create cpu executor: %v\n", err)
		os.Exit(1)
	}
	defer cpu.Close()
	gpu, err := physics.NewExecutor(config.ExecutorGPU, p, cfg.Simulation.Workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create gpu executor: %v\n", err)
		os.Exit(1)
	}
	defer gpu.Close()

	rows, err := replay(cpu, gpu, base, *steps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		os.Exit(1)
	}

	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *outPath, err)
			os.Exit(1)
		}
		err = gocsv.MarshalFile(&rows, f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write drift log: %v\n", err)
			os.Exit(1)
		}
	}

	worst := driftRow{}
	for _, r := range rows {
		if math.Max(r.MaxPosDrift, r.MaxVelDrift) > math.Max(worst.MaxPosDrift, worst.MaxVelDrift) {
			worst = r
		}
	}
	fmt.Printf("Replayed %d particles for %d steps (%s vs %s)\n", base.Len(), len(rows), cpu.Name(), gpu.Name())
	fmt.Printf("Worst drift: pos=%.3g vel=%.3g at step %d, particle %d\n",
		worst.MaxPosDrift, worst.MaxVelDrift, worst.Step, worst.WorstIndex)
	if math.Max(worst.MaxPosDrift, worst.MaxVelDrift) > *tolerance {
		fmt.Fprintf(os.Stderr, "Drift exceeds tolerance %g\n", *tolerance)
		os.Exit(1)
	}
}

// replay steps both executors from identical copies of base, swapping after
// each step so their own output feeds the next.
func replay(a, b physics.ForceExecutor, base *physics.Snapshot, steps int) ([]driftRow, error) {
	sa, sb := base.Clone(), base.Clone()
	rows := make([]driftRow, 0, steps)
	for step := 0; step < steps; step++ {
		if err := a.Step(sa); err != nil {
			return rows, fmt.Errorf("%s step %d: %w", a.Name(), step, err)
		}
		if err := b.Step(sb); err != nil {
			return rows, fmt.Errorf("%s step %d: %w", b.Name(), step, err)
		}
		posDrift, worst := maxRelDrift(sa.NextPos, sb.NextPos)
		velDrift, _ := maxRelDrift(sa.NextVel, sb.NextVel)
		rows = append(rows, driftRow{Step: step, MaxPosDrift: posDrift, MaxVelDrift: velDrift, WorstIndex: worst})
		sa.Swap()
		sb.Swap()
	}
	return rows, nil
}

// maxRelDrift returns the largest component-wise relative difference and
// the particle it occurs at.
func maxRelDrift(a, b []mgl32.Vec3) (float64, int) {
	var worst float64
	at := -1
	for i := range a {
		for c := 0; c < 3; c++ {
			x, y := float64(a[i][c]), float64(b[i][c])
			d := math.Abs(x-y) / math.Max(1, math.Max(math.Abs(x), math.Abs(y)))
			if d > worst {
				worst, at = d, i
			}
		}
	}
	return worst, at
}

// randomSnapshot lays out every population on the same random positions
// with a random genome each, and scatters the configured food.
func randomSnapshot(rng *rand.Rand, cfg *config.Config, p physics.Params) *physics.Snapshot {
	pops, n := cfg.Simulation.SimulationCount, cfg.Simulation.ParticleCount
	s := &physics.Snapshot{}
	s.Reset(pops * n)

	layout := make([]mgl32.Vec3, n)
	for i := range layout {
		layout[i] = randomIn(rng, p.Extent)
	}
	for pop := 0; pop < pops; pop++ {
		s.Tables = append(s.Tables, genome.TableOf(genome.Random(p.TypeCount, rng)))
		for k := 0; k < n; k++ {
			i := pop*n + k
			s.Pos[i] = layout[k]
			s.Type[i] = uint8(k % p.TypeCount)
			s.Pop[i] = uint16(pop)
		}
	}
	for k := 0; k < cfg.Food.Count; k++ {
		s.Food = append(s.Food, physics.FoodItem{Pos: randomIn(rng, p.Extent), Visible: true})
	}
	return s
}

func randomIn(rng *rand.Rand, extent mgl32.Vec3) mgl32.Vec3 {
	var v mgl32.Vec3
	for a := 0; a < 3; a++ {
		v[a] = (rng.Float32() - 0.5) * extent[a]
	}
	return v
}
