package game

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/genome"
	"github.com/pthm-cable/plife/telemetry"
)

// testConfig is a small run: 4 populations of 12 particles, 10 ticks per epoch.
func testConfig(t *testing.T, edit func(*config.Config)) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.SimulationCount = 4
	cfg.Simulation.ParticleCount = 12
	cfg.Simulation.ParticleTypes = 3
	cfg.Simulation.EpochDuration = 0.16
	cfg.Simulation.DT = 0.016
	cfg.Simulation.Executor = config.ExecutorCPU
	cfg.Simulation.Workers = 2
	cfg.Food.Count = 10
	cfg.Telemetry.PerfWindow = 10
	if edit != nil {
		edit(cfg)
	}
	if err := cfg.Refresh(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func newRun(t *testing.T, cfg *config.Config, opts Options) *Run {
	t.Helper()
	r, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRunDeterministic(t *testing.T) {
	trajectory := func() ([][]float32, []*genome.Vector) {
		var scores [][]float32
		cfg := testConfig(t, func(c *config.Config) {
			c.Food.Count = 40
			c.Food.Radius = 20
		})
		r := newRun(t, cfg, Options{Seed: 7, OnEpoch: func(rep EpochReport) {
			row := make([]float32, len(rep.Results))
			for i, res := range rep.Results {
				row[i] = res.Score
			}
			scores = append(scores, row)
		}})
		if err := r.RunEpochs(context.Background(), 3); err != nil {
			t.Fatalf("RunEpochs: %v", err)
		}
		var genomes []*genome.Vector
		for _, p := range r.Populations() {
			genomes = append(genomes, p.Genome)
		}
		return scores, genomes
	}

	s1, g1 := trajectory()
	s2, g2 := trajectory()

	if len(s1) != 3 || len(s2) != 3 {
		t.Fatalf("epochs = %d and %d, want 3", len(s1), len(s2))
	}
	for e := range s1 {
		for i := range s1[e] {
			if s1[e][i] != s2[e][i] {
				t.Errorf("epoch %d population %d: score %v vs %v", e, i, s1[e][i], s2[e][i])
			}
		}
	}
	for i := range g1 {
		if !g1[i].Equal(g2[i]) {
			t.Errorf("population %d genome differs between runs", i)
		}
	}
}

func TestRunZeroParticles(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Simulation.ParticleCount = 0
	})
	var reports []EpochReport
	r := newRun(t, cfg, Options{Seed: 1, OnEpoch: func(rep EpochReport) { reports = append(reports, rep) }})

	if err := r.RunEpochs(context.Background(), 2); err != nil {
		t.Fatalf("RunEpochs: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d epoch reports, want 2", len(reports))
	}
	for _, rep := range reports {
		if len(rep.Generation.Genomes) != 4 {
			t.Errorf("generation has %d genomes, want 4", len(rep.Generation.Genomes))
		}
		for i, res := range rep.Results {
			if res.Score != 0 {
				t.Errorf("population %d scored %v with no particles", i, res.Score)
			}
		}
	}
	if got := r.Epoch().Epoch; got != 2 {
		t.Errorf("epoch = %d, want 2", got)
	}
}

func TestFrameSpeed(t *testing.T) {
	tests := []struct {
		speed Speed
		ticks int
	}{
		{Paused, 0},
		{Normal, 1},
		{Fast, 2},
		{VeryFast, 4},
	}
	for _, tt := range tests {
		t.Run(tt.speed.String(), func(t *testing.T) {
			cfg := testConfig(t, nil)
			r := newRun(t, cfg, Options{Seed: 3})
			r.SetSpeed(tt.speed)
			if err := r.Frame(); err != nil {
				t.Fatal(err)
			}
			want := float32(tt.ticks) * cfg.Derived.DT32
			if got := r.Epoch().Elapsed; got != want {
				t.Errorf("elapsed = %v, want %v", got, want)
			}
		})
	}
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		in   string
		want Speed
		ok   bool
	}{
		{"paused", Paused, true},
		{"normal", Normal, true},
		{"x2", Fast, true},
		{"4", VeryFast, true},
		{"VERY_FAST", VeryFast, true},
		{"3", Paused, false},
	}
	for _, tt := range tests {
		got, err := ParseSpeed(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseSpeed(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseSpeed(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// placeFood moves the only food item next to slot 0 of population 0. Every
// population starts with slot 0 at the same position.
func placeFood(t *testing.T, r *Run) {
	t.Helper()
	if r.food.Len() != 1 {
		t.Fatalf("food pool has %d items, want 1", r.food.Len())
	}
	slot0 := r.pops[0].Particles[0]
	pos := r.food.posMap.Get(slot0).Vec3
	r.food.posMap.Get(r.food.items[0]).Vec3 = pos.Add(mgl32.Vec3{1, 0, 0})
}

func TestFoodCollision(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Simulation.SimulationCount = 2
		c.Simulation.ParticleCount = 1
		c.Simulation.EpochDuration = 10
		c.Food.Count = 1
		c.Food.RespawnEnabled = true
		c.Food.RespawnCooldown = 0.04 // 2.5 ticks
	})
	r := newRun(t, cfg, Options{Seed: 5})
	placeFood(t, r)

	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
	if r.pops[0].Score != cfg.Derived.FoodValue32 {
		t.Errorf("population 0 score = %v, want %v", r.pops[0].Score, cfg.Derived.FoodValue32)
	}
	if r.pops[1].Score != 0 {
		t.Errorf("population 1 score = %v, want 0: an item is eaten at most once", r.pops[1].Score)
	}
	if r.food.Visible() != 0 {
		t.Fatal("eaten food still visible")
	}

	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
	if r.food.Visible() != 0 {
		t.Error("food respawned before its cooldown")
	}
	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
	if r.food.Visible() != 1 {
		t.Error("food did not respawn after its cooldown")
	}
	if r.pops[0].Score != cfg.Derived.FoodValue32 {
		t.Errorf("score changed while food was hidden: %v", r.pops[0].Score)
	}
}

func TestFoodWithoutRespawn(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Simulation.SimulationCount = 1
		c.Simulation.ParticleCount = 1
		c.Simulation.EpochDuration = 10
		c.Food.Count = 1
		c.Food.RespawnEnabled = false
	})
	r := newRun(t, cfg, Options{Seed: 5})
	placeFood(t, r)

	for i := 0; i < 20; i++ {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if r.food.Visible() != 0 {
		t.Error("consumed food reappeared before reset")
	}
	if r.pops[0].Score != cfg.Derived.FoodValue32 {
		t.Errorf("score = %v, want one item's value", r.pops[0].Score)
	}
}

func TestEpochReset(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Food.RespawnEnabled = false
		c.Food.Count = 30
		c.Food.Radius = 30
	})
	r := newRun(t, cfg, Options{Seed: 11})

	if err := r.RunEpochs(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if st := r.Epoch(); st.Epoch != 1 || st.Elapsed != 0 {
		t.Errorf("epoch state = %+v, want epoch 1 with nothing elapsed", st)
	}
	if r.LastGeneration() == nil {
		t.Fatal("no generation recorded")
	}
	if r.food.Visible() != r.food.Len() {
		t.Errorf("%d of %d food items visible after reset", r.food.Visible(), r.food.Len())
	}

	layout := make(map[uint16]mgl32.Vec3)
	query := r.particleFilter.Query()
	for query.Next() {
		pos, vel, part, _ := query.Get()
		if vel.Vec3 != (mgl32.Vec3{}) {
			t.Errorf("slot %d velocity %v after reset", part.Slot, vel.Vec3)
		}
		if want, ok := layout[part.Slot]; ok && want != pos.Vec3 {
			t.Errorf("slot %d positions differ between populations", part.Slot)
		}
		layout[part.Slot] = pos.Vec3
	}
	for _, p := range r.Populations() {
		if p.Score != 0 {
			t.Errorf("population %d score %v after reset", p.ID, p.Score)
		}
		if p.Last == nil {
			t.Errorf("population %d has no result", p.ID)
		}
	}
	if best, ok := r.Best(); !ok || best.Last.Rank != 0 {
		t.Error("no best population after one epoch")
	}
}

func TestReplaceGenome(t *testing.T) {
	cfg := testConfig(t, nil)
	r := newRun(t, cfg, Options{Seed: 2})
	rng := rand.New(rand.NewSource(9))

	if err := r.ReplaceGenome(0, genome.Random(4, rng)); !errors.Is(err, genome.ErrShape) {
		t.Errorf("type mismatch error = %v, want ErrShape", err)
	}
	if err := r.ReplaceGenome(0, nil); !errors.Is(err, genome.ErrShape) {
		t.Errorf("nil genome error = %v, want ErrShape", err)
	}
	if err := r.ReplaceGenome(99, genome.Random(3, rng)); err == nil {
		t.Error("out of range population accepted")
	}

	g := genome.Random(3, rng)
	g.Coherence = 0
	if err := r.ReplaceGenome(1, g); err != nil {
		t.Fatal(err)
	}
	got := r.Populations()[1].Genome
	if got == g || !got.Equal(g) {
		t.Error("replacement should be an equal copy")
	}
	if got.Coherence != genome.Coherence(got) {
		t.Errorf("coherence %v not refreshed", got.Coherence)
	}
	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
}

func TestNewRejectsSeeds(t *testing.T) {
	cfg := testConfig(t, nil)
	rng := rand.New(rand.NewSource(1))
	_, err := New(cfg, Options{Seeds: []*genome.Vector{genome.Random(2, rng)}})
	if !errors.Is(err, genome.ErrShape) {
		t.Errorf("error = %v, want ErrShape", err)
	}
}

func TestSeedsCycle(t *testing.T) {
	cfg := testConfig(t, nil)
	rng := rand.New(rand.NewSource(1))
	seeds := []*genome.Vector{genome.Random(3, rng), genome.Random(3, rng)}
	r := newRun(t, cfg, Options{Seeds: seeds})

	for i, p := range r.Populations() {
		if !p.Genome.Equal(seeds[i%2]) {
			t.Errorf("population %d does not carry seed %d", i, i%2)
		}
		if p.Genome == seeds[i%2] {
			t.Errorf("population %d aliases its seed", i)
		}
	}
}

func TestRunWritesOutput(t *testing.T) {
	dir := t.TempDir()
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	cfg := testConfig(t, nil)
	r, err := New(cfg, Options{Seed: 4, Output: om, CheckpointEvery: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RunEpochs(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"epochs.csv", "perf.csv", "fitness.png", "hall_of_fame.json", "checkpoints/checkpoint_0002.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	cp, err := telemetry.LoadCheckpoint(filepath.Join(dir, "checkpoints", "checkpoint_0002.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cp.Genomes) != 4 || cp.RNGSeed != 4 {
		t.Errorf("checkpoint has %d genomes seed %d, want 4 and 4", len(cp.Genomes), cp.RNGSeed)
	}
}

func TestRunResumesEpochNumbering(t *testing.T) {
	dir := t.TempDir()
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	var scored []int
	cfg := testConfig(t, nil)
	r := newRun(t, cfg, Options{
		Seed:            4,
		StartEpoch:      5,
		Output:          om,
		CheckpointEvery: 1,
		OnEpoch:         func(rep EpochReport) { scored = append(scored, rep.Generation.Epoch) },
	})
	if got := r.Epoch().Epoch; got != 5 {
		t.Fatalf("initial epoch = %d, want 5", got)
	}
	if err := r.RunEpochs(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if len(scored) != 2 || scored[0] != 5 || scored[1] != 6 {
		t.Errorf("scored epochs = %v, want [5 6]", scored)
	}
	if got := r.Epoch().Epoch; got != 7 {
		t.Errorf("epoch = %d, want 7", got)
	}

	for _, name := range []string{"checkpoint_0006.json", "checkpoint_0007.json"} {
		if _, err := os.Stat(filepath.Join(dir, "checkpoints", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "checkpoints", "checkpoint_0001.json")); err == nil {
		t.Error("resumed run restarted checkpoint numbering at 1")
	}
}

func TestNewRejectsNegativeStartEpoch(t *testing.T) {
	cfg := testConfig(t, nil)
	if _, err := New(cfg, Options{Seed: 1, StartEpoch: -1}); err == nil {
		t.Error("New accepted a negative start epoch")
	}
}

func TestRunEpochsCancelled(t *testing.T) {
	cfg := testConfig(t, nil)
	r := newRun(t, cfg, Options{Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.RunEpochs(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if r.Epoch().Elapsed != 0 {
		t.Error("cancelled run advanced")
	}
}
