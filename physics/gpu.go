package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/spatial"
)

// WorkgroupSize is the local size of the force kernel.
const WorkgroupSize = 64

// std430 layout, in 32-bit words.
const (
	// pos.xyz, pad, vel.xyz, type, sim, pad x3
	particleWords = 12
	// pos.xyz, visible
	foodWords = 4
)

// Word offsets inside one packed particle.
const (
	offPos  = 0
	offVel  = 4
	offType = 7
	offSim  = 8
)

// GPUParams is the std430 uniform block shared by every invocation.
// Field order is the buffer layout; the struct is 80 bytes.
type GPUParams struct {
	DT              float32
	Count           uint32
	Sims            uint32
	Types           uint32
	Range           float32
	Width           float32
	Height          float32
	Depth           float32
	Boundary        uint32 // 0 bounce, 1 teleport
	MaxInteractions uint32
	FoodCount       uint32
	MinR            float32
	Radius          float32
	HalfLife        float32
	MaxVelocity     float32
	FoodRadius      float32
	Damping         float32
	_               [3]uint32
}

func gpuParams(p *Params, count, sims, food int) GPUParams {
	var boundary uint32
	if p.Mode == spatial.Toroidal {
		boundary = 1
	}
	return GPUParams{
		DT:              p.DT,
		Count:           uint32(count),
		Sims:            uint32(sims),
		Types:           uint32(p.TypeCount),
		Range:           p.MaxForceRange,
		Width:           p.Extent[0],
		Height:          p.Extent[1],
		Depth:           p.Extent[2],
		Boundary:        boundary,
		MaxInteractions: uint32(max(p.MaxInteractions, 0)),
		FoodCount:       uint32(food),
		MinR:            p.MinR,
		Radius:          p.ParticleRadius,
		HalfLife:        p.HalfLife,
		MaxVelocity:     p.MaxVelocity,
		FoodRadius:      p.FoodRadius,
		Damping:         p.CollisionDamping,
	}
}

// Params rebuilds the physics constants from the uniform block.
func (g GPUParams) Params() Params {
	mode := spatial.Bounded
	if g.Boundary == 1 {
		mode = spatial.Toroidal
	}
	return Params{
		DT:               g.DT,
		MaxForceRange:    g.Range,
		ParticleRadius:   g.Radius,
		TypeCount:        int(g.Types),
		MinR:             g.MinR,
		HalfLife:         g.HalfLife,
		MaxVelocity:      g.MaxVelocity,
		FoodRadius:       g.FoodRadius,
		CollisionDamping: g.Damping,
		MaxInteractions:  int(g.MaxInteractions),
		Extent:           mgl32.Vec3{g.Width, g.Height, g.Depth},
		Mode:             mode,
	}
}

// Batch is one kernel launch: std430 buffers plus the dispatch size.
// Integer fields inside Particles and Food are stored as raw bits.
type Batch struct {
	Params    GPUParams
	Particles []float32 // particleWords per particle
	Food      []float32 // foodWords per item
	Genomes   []float32 // types*types forces then types food affinities, per population
	Groups    uint32
}

// GenomeStride is the number of floats one population occupies in Genomes.
func (b *Batch) GenomeStride() int {
	t := int(b.Params.Types)
	return t*t + t
}

// Device runs the force kernel over a batch, leaving the integrated
// particles in b.Particles.
type Device interface {
	Name() string
	Dispatch(b *Batch) error
	Close() error
}

// GPUExecutor packs each snapshot into std430 buffers and dispatches the
// force kernel on a Device. The kernel scans same-population particles in
// ID order, so it needs no spatial index.
type GPUExecutor struct {
	params Params
	dev    Device
	batch  Batch
}

// NewGPUExecutor creates an executor that owns dev.
func NewGPUExecutor(p Params, dev Device) *GPUExecutor {
	return &GPUExecutor{params: p, dev: dev}
}

// Name implements ForceExecutor.
func (e *GPUExecutor) Name() string { return "gpu/" + e.dev.Name() }

// Step implements ForceExecutor.
func (e *GPUExecutor) Step(s *Snapshot) error {
	if err := s.Check(); err != nil {
		return err
	}
	n := s.Len()
	if n == 0 {
		return nil
	}
	e.pack(s)
	if err := e.dev.Dispatch(&e.batch); err != nil {
		return fmt.Errorf("dispatching %d workgroups on %s: %w", e.batch.Groups, e.dev.Name(), err)
	}
	e.unpack(s)
	return nil
}

// Close releases the device.
func (e *GPUExecutor) Close() error { return e.dev.Close() }

func (e *GPUExecutor) pack(s *Snapshot) {
	n := s.Len()
	b := &e.batch
	b.Params = gpuParams(&e.params, n, len(s.Tables), len(s.Food))
	b.Groups = uint32((n + WorkgroupSize - 1) / WorkgroupSize)

	b.Particles = resizeWords(b.Particles, n*particleWords)
	for i := 0; i < n; i++ {
		w := b.Particles[i*particleWords : (i+1)*particleWords]
		clear(w)
		copy(w[offPos:offPos+3], s.Pos[i][:])
		copy(w[offVel:offVel+3], s.Vel[i][:])
		w[offType] = math.Float32frombits(uint32(s.Type[i]))
		w[offSim] = math.Float32frombits(uint32(s.Pop[i]))
	}

	b.Food = resizeWords(b.Food, len(s.Food)*foodWords)
	for i, f := range s.Food {
		w := b.Food[i*foodWords : (i+1)*foodWords]
		copy(w[:3], f.Pos[:])
		var vis uint32
		if f.Visible {
			vis = 1
		}
		w[3] = math.Float32frombits(vis)
	}

	types := e.params.TypeCount
	stride := b.GenomeStride()
	b.Genomes = resizeWords(b.Genomes, len(s.Tables)*stride)
	for pop := range s.Tables {
		t := &s.Tables[pop]
		g := b.Genomes[pop*stride : (pop+1)*stride]
		for a := 0; a < types; a++ {
			for c := 0; c < types; c++ {
				g[a*types+c] = t.At(a, c)
			}
			g[types*types+a] = t.FoodAt(a)
		}
	}
}

func (e *GPUExecutor) unpack(s *Snapshot) {
	for i := 0; i < s.Len(); i++ {
		w := e.batch.Particles[i*particleWords : (i+1)*particleWords]
		s.NextPos[i] = mgl32.Vec3{w[offPos], w[offPos+1], w[offPos+2]}
		s.NextVel[i] = mgl32.Vec3{w[offVel], w[offVel+1], w[offVel+2]}
	}
}

func resizeWords(v []float32, n int) []float32 {
	if cap(v) < n {
		return make([]float32, n)
	}
	return v[:n]
}

// bits reads an integer field stored in a float word.
func bits(w float32) uint32 { return math.Float32bits(w) }
