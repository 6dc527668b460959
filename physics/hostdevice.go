package physics

import (
	"iter"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/blas/blas32"
)

// HostDevice executes the force kernel on the CPU with the same buffer
// contract as a compute device: workgroups of WorkgroupSize invocations
// run on a bounded goroutine pool, then an integrate pass updates the
// strided std430 columns with blas32.
type HostDevice struct {
	workers int
	acc     []float32 // 3 words per particle
}

// NewHostDevice creates a host device. workers <= 0 means GOMAXPROCS.
func NewHostDevice(workers int) *HostDevice {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &HostDevice{workers: workers}
}

// Name implements Device.
func (d *HostDevice) Name() string { return "host" }

// Close implements Device.
func (d *HostDevice) Close() error { return nil }

// Dispatch implements Device.
func (d *HostDevice) Dispatch(b *Batch) error {
	n := int(b.Params.Count)
	if n == 0 {
		return nil
	}
	p := b.Params.Params()
	d.acc = resizeWords(d.acc, 3*n)

	wp := pool.New().WithMaxGoroutines(d.workers)
	for g := 0; g < int(b.Groups); g++ {
		wp.Go(func() {
			for local := 0; local < WorkgroupSize; local++ {
				i := g*WorkgroupSize + local
				if i >= n {
					return
				}
				a := d.invoke(b, &p, i)
				copy(d.acc[3*i:3*i+3], a[:])
			}
		})
	}
	wp.Wait()

	d.integrate(b, &p, n)
	return nil
}

// invoke is one kernel invocation: the total acceleration of particle i.
func (d *HostDevice) invoke(b *Batch, p *Params, i int) mgl32.Vec3 {
	words := b.Particles
	self := words[i*particleWords : (i+1)*particleWords]
	pos := mgl32.Vec3{self[offPos], self[offPos+1], self[offPos+2]}
	typ := int(bits(self[offType]))
	sim := bits(self[offSim])

	types := int(b.Params.Types)
	genome := b.Genomes[int(sim)*b.GenomeStride():]
	attraction := func(other int) float32 {
		if typ >= types || other >= types {
			return 0
		}
		return genome[typ*types+other]
	}

	var neighbors iter.Seq2[mgl32.Vec3, uint8] = func(yield func(mgl32.Vec3, uint8) bool) {
		for j := 0; j < int(b.Params.Count); j++ {
			w := words[j*particleWords : (j+1)*particleWords]
			if j == i || bits(w[offSim]) != sim {
				continue
			}
			rel := p.Displacement(pos, mgl32.Vec3{w[offPos], w[offPos+1], w[offPos+2]})
			if !yield(rel, uint8(bits(w[offType]))) {
				return
			}
		}
	}
	acc := interact(p, attraction, neighbors)

	var foodForce float32
	if typ < types {
		foodForce = genome[types*types+typ]
	}
	return acc.Add(foodTerm(p, foodForce, pos, func(yield func(mgl32.Vec3) bool) {
		for k := 0; k < int(b.Params.FoodCount); k++ {
			f := b.Food[k*foodWords : (k+1)*foodWords]
			if bits(f[3]) == 0 {
				continue
			}
			if !yield(mgl32.Vec3{f[0], f[1], f[2]}) {
				return
			}
		}
	}))
}

// integrate applies v += a*dt, damping, the speed clamp, x += v*dt and the
// boundary policy over the packed buffer.
func (d *HostDevice) integrate(b *Batch, p *Params, n int) {
	words := b.Particles
	decay := p.Decay()
	for axis := 0; axis < 3; axis++ {
		vel := blas32.Vector{N: n, Inc: particleWords, Data: words[offVel+axis:]}
		acc := blas32.Vector{N: n, Inc: 3, Data: d.acc[axis:]}
		blas32.Axpy(p.DT, acc, vel)
		blas32.Scal(decay, vel)
	}

	for i := 0; i < n; i++ {
		w := words[i*particleWords:]
		v := ClampSpeed(mgl32.Vec3{w[offVel], w[offVel+1], w[offVel+2]}, p.MaxVelocity)
		copy(w[offVel:offVel+3], v[:])
	}

	for axis := 0; axis < 3; axis++ {
		vel := blas32.Vector{N: n, Inc: particleWords, Data: words[offVel+axis:]}
		pos := blas32.Vector{N: n, Inc: particleWords, Data: words[offPos+axis:]}
		blas32.Axpy(p.DT, vel, pos)
	}

	for i := 0; i < n; i++ {
		w := words[i*particleWords:]
		pos, vel := ApplyBounds(
			mgl32.Vec3{w[offPos], w[offPos+1], w[offPos+2]},
			mgl32.Vec3{w[offVel], w[offVel+1], w[offVel+2]},
			p,
		)
		copy(w[offPos:offPos+3], pos[:])
		copy(w[offVel:offVel+3], vel[:])
	}
}
