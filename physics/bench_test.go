package physics

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/plife/spatial"
)

// Benchmark the velocity update with a scalar loop over std430 words
func BenchmarkIntegrateScalar(b *testing.B) {
	n := 1600 // default 16 populations of 100
	p := testParams(spatial.Bounded)
	words := make([]float32, n*particleWords)
	acc := make([]float32, n*3)
	for i := range acc {
		acc[i] = float32(i%17) * 0.1
	}
	decay := p.Decay()

	b.ResetTimer()
	for k := 0; k < b.N; k++ {
		for i := 0; i < n; i++ {
			w := words[i*particleWords:]
			for axis := 0; axis < 3; axis++ {
				w[offVel+axis] = (w[offVel+axis] + acc[i*3+axis]*p.DT) * decay
			}
		}
	}
}

// Benchmark the same update with strided blas32 vectors
func BenchmarkIntegrateBLAS(b *testing.B) {
	n := 1600
	p := testParams(spatial.Bounded)
	words := make([]float32, n*particleWords)
	acc := make([]float32, n*3)
	for i := range acc {
		acc[i] = float32(i%17) * 0.1
	}
	decay := p.Decay()

	b.ResetTimer()
	for k := 0; k < b.N; k++ {
		for axis := 0; axis < 3; axis++ {
			vel := blas32.Vector{N: n, Inc: particleWords, Data: words[offVel+axis:]}
			a := blas32.Vector{N: n, Inc: 3, Data: acc[axis:]}
			blas32.Axpy(p.DT, a, vel)
			blas32.Scal(decay, vel)
		}
	}
}

func benchmarkStep(b *testing.B, newExec func(Params) ForceExecutor) {
	p := testParams(spatial.Toroidal)
	p.Extent = mgl32.Vec3{600, 600, 600}
	s := randomSnapshot(rand.New(rand.NewSource(1)), p, 16, 100, 50)
	exec := newExec(p)
	defer exec.Close()

	b.ResetTimer()
	for k := 0; k < b.N; k++ {
		if err := exec.Step(s); err != nil {
			b.Fatal(err)
		}
		s.Swap()
	}
}

func BenchmarkStepCPU(b *testing.B) {
	benchmarkStep(b, func(p Params) ForceExecutor { return NewCPUExecutor(p, 0) })
}

func BenchmarkStepHostDevice(b *testing.B) {
	benchmarkStep(b, func(p Params) ForceExecutor { return NewGPUExecutor(p, NewHostDevice(0)) })
}
