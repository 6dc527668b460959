package evolution

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/pthm-cable/plife/genome"
)

func uniformGenome(t *testing.T, types int, f float32) *genome.Vector {
	t.Helper()
	force := make([]float32, types*types)
	food := make([]float32, types)
	for i := range force {
		force[i] = f
	}
	for i := range food {
		food[i] = f
	}
	g, err := genome.New(types, force, food)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestScore(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cands := make([]Candidate, 4)
	for i := range cands {
		cands[i] = Candidate{Genome: genome.Random(3, rng), Score: float32(i + 1)}
	}

	st := Score(cands, 3)
	checks := []struct {
		name      string
		got, want float32
	}{
		{"best", st.Best, 4},
		{"worst", st.Worst, 1},
		{"mean", st.Mean, 2.5},
		{"median", st.Median, 2},
		{"stddev", st.StdDev, float32(math.Sqrt(5.0 / 3.0))},
		{"improvement", st.Improvement, 1},
	}
	for _, c := range checks {
		if math.Abs(float64(c.got-c.want)) > 1e-5 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if st.Populations != 4 || st.Diversity <= 0 {
		t.Errorf("populations %d diversity %v", st.Populations, st.Diversity)
	}

	one := Score(cands[:1], 0)
	if one.StdDev != 0 || one.Median != 1 {
		t.Errorf("single candidate stats = %+v", one)
	}
	if empty := Score(nil, 5); empty != (EpochStats{}) {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestRankStable(t *testing.T) {
	got := Rank([]float32{0.5, 0.9, 0.5, 0.1, 0.9})
	want := []int{1, 4, 0, 2, 3}
	if !slices.Equal(got, want) {
		t.Errorf("Rank = %v, want %v", got, want)
	}
}

func TestFitnessBonuses(t *testing.T) {
	tests := []struct {
		name      string
		got, want float32
	}{
		{"coherence below threshold", coherenceBonus(0.2, 0.3), 0},
		{"coherence max", coherenceBonus(1, 0.3), 1},
		{"trend flat", trendBonus(0), 0.5},
		{"trend saturates up", trendBonus(50), 1},
		{"trend saturates down", trendBonus(-50), 0},
		{"trend partial", trendBonus(5), 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(float64(tt.got-tt.want)) > 1e-6 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMutationFactors(t *testing.T) {
	tests := []struct {
		name      string
		got, want float32
	}{
		{"low diversity", diversityFactor(0.2, 0.5), 1.5},
		{"normal diversity", diversityFactor(1, 0.5), 1},
		{"high diversity", diversityFactor(2.5, 0.5), 0.7},
		{"fresh", stagnationFactor(0), 1},
		{"stagnant 2", stagnationFactor(2), 1.5},
		{"stagnant cap", stagnationFactor(9), 2},
		{"coherent", coherenceFactor(0.8, 0.3), 0.6},
		{"incoherent", coherenceFactor(0.1, 0.3), 1.4},
		{"middling", coherenceFactor(0.5, 0.3), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestCrossoverStrategy(t *testing.T) {
	e := NewEngine(testOptions(), rand.New(rand.NewSource(1)))
	a := &genome.Vector{}
	b := &genome.Vector{}
	tests := []struct {
		ca, cb float32
		want   string
	}{
		{0.8, 0.9, CrossSymmetric},
		{0.8, 0.6, CrossTypeBlock},
		{0.2, 0.6, CrossTypeBlock},
		{0.4, 0.5, CrossHybrid},
	}
	for _, tt := range tests {
		a.Coherence, b.Coherence = tt.ca, tt.cb
		if got := e.Strategy(a, b); got != tt.want {
			t.Errorf("Strategy(%v, %v) = %q, want %q", tt.ca, tt.cb, got, tt.want)
		}
	}

	opts := testOptions()
	opts.Packed = true
	if got := NewEngine(opts, nil).Strategy(a, b); got != CrossPacked {
		t.Errorf("packed engine strategy = %q", got)
	}
}

func TestSymmetricCrossover(t *testing.T) {
	e := NewEngine(testOptions(), rand.New(rand.NewSource(2)))
	a, b := uniformGenome(t, 4, 1), uniformGenome(t, 4, -1)
	for trial := 0; trial < 20; trial++ {
		child := e.symmetric(a, b)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				if child.DecodeForce(i, j) != child.DecodeForce(j, i) {
					t.Fatalf("pair (%d,%d) split between parents: %v", i, j, child.Rows())
				}
			}
		}
	}
}

func TestTypeBlockCrossover(t *testing.T) {
	e := NewEngine(testOptions(), rand.New(rand.NewSource(3)))
	a, b := uniformGenome(t, 4, 1), uniformGenome(t, 4, -1)
	for trial := 0; trial < 20; trial++ {
		child := e.typeBlock(a, b)
		for i := 0; i < 4; i++ {
			want := child.DecodeFoodForce(i)
			for j := 0; j < 4; j++ {
				if got := child.DecodeForce(i, j); got != want {
					t.Fatalf("row %d mixes parents: %v food %v", i, child.Rows(), child.FoodForces)
				}
			}
		}
	}
}

func TestHybridCrossover(t *testing.T) {
	e := NewEngine(testOptions(), rand.New(rand.NewSource(4)))
	a, b := uniformGenome(t, 5, 1), uniformGenome(t, 5, -1)
	a.Coherence, b.Coherence = 0.1, 0.2

	from := 0
	trials := 200
	for trial := 0; trial < trials; trial++ {
		child := e.hybrid(a, b)
		for _, f := range child.ForceMatrix {
			if f == 1 {
				from++
			}
		}
	}
	share := float64(from) / float64(trials*25)
	if share < 0.15 || share > 0.25 {
		t.Errorf("share overwritten from the less coherent parent = %v, want about 0.2", share)
	}
}

func TestPackedUniformCrossover(t *testing.T) {
	opts := testOptions()
	opts.Packed = true
	rng := rand.New(rand.NewSource(5))
	e := NewEngine(opts, rng)
	a, b := genome.Random(3, rng), genome.Random(3, rng)
	pa, pb := genome.PackVector(a), genome.PackVector(b)

	for trial := 0; trial < 20; trial++ {
		child := e.crossover(a, b)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				got := child.DecodeForce(i, j)
				if got != pa.DecodeForce(i, j) && got != pb.DecodeForce(i, j) {
					t.Fatalf("force (%d,%d) = %v matches neither parent block", i, j, got)
				}
			}
			got := child.DecodeFoodForce(i)
			if got != pa.DecodeFoodForce(i) && got != pb.DecodeFoodForce(i) {
				t.Fatalf("food %d = %v matches neither parent block", i, got)
			}
		}
	}
}

func TestCrossoverMismatchedTypes(t *testing.T) {
	e := NewEngine(testOptions(), rand.New(rand.NewSource(6)))
	a, b := uniformGenome(t, 3, 0.5), uniformGenome(t, 4, -0.5)
	if child := e.crossover(a, b); !child.Equal(a) {
		t.Error("mismatched parents should clone the first")
	}
}

func TestMutateGenesClamps(t *testing.T) {
	opts := testOptions()
	opts.MutationSigma = 10
	e := NewEngine(opts, rand.New(rand.NewSource(7)))
	g := uniformGenome(t, 3, 1.9)

	if n := e.mutateGenes(g, 1); n != 12 {
		t.Errorf("mutated %d genes, want all 12", n)
	}
	if err := g.Check(genome.MaxForce); err != nil {
		t.Errorf("mutated genome out of range: %v", err)
	}
	if n := e.mutateGenes(g, 0); n != 0 {
		t.Errorf("rate 0 mutated %d genes", n)
	}
}

func TestMutateRetriesThenFails(t *testing.T) {
	opts := testOptions()
	opts.CoherenceThreshold = 1.01 // unreachable
	opts.MutationRetries = 2
	e := NewEngine(opts, rand.New(rand.NewSource(8)))
	g := genome.Random(3, rand.New(rand.NewSource(9)))

	if e.mutate(g, 1) {
		t.Error("mutate succeeded although no genome can reach the threshold")
	}

	opts.CoherenceThreshold = 0
	e = NewEngine(opts, rand.New(rand.NewSource(8)))
	if !e.mutate(g, 1) {
		t.Error("mutate failed with a zero threshold")
	}
}
