package physics

import (
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/spatial"
)

// parallelThreshold is the particle count below which Step stays on the
// calling goroutine.
const parallelThreshold = 64

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	Neighbors []spatial.Neighbor
}

// workChunk represents a range of particles for a worker to process.
type workChunk struct {
	start, end int
}

// CPUExecutor rebuilds a spatial index every step and computes particles
// in chunks on a persistent worker pool.
type CPUExecutor struct {
	params Params
	index  spatial.Index
	points []spatial.Point

	snap       *Snapshot // valid while a step is in flight
	scratches  []workerScratch
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewCPUExecutor creates a CPU executor. workers <= 0 means GOMAXPROCS.
func NewCPUExecutor(p Params, workers int) *CPUExecutor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scratches := make([]workerScratch, workers)
	for i := range scratches {
		scratches[i].Neighbors = make([]spatial.Neighbor, 0, 128)
	}
	return &CPUExecutor{
		params:     p,
		index:      spatial.New(p.Mode, p.Extent, p.MaxForceRange),
		numWorkers: workers,
		scratches:  scratches,
	}
}

// Name implements ForceExecutor.
func (e *CPUExecutor) Name() string { return "cpu" }

// Step implements ForceExecutor.
func (e *CPUExecutor) Step(s *Snapshot) error {
	if err := s.Check(); err != nil {
		return err
	}
	n := s.Len()
	if n == 0 {
		return nil
	}

	// Phase A: rebuild the index from the snapshot (single-threaded)
	e.points = e.points[:0]
	for i := 0; i < n; i++ {
		e.points = append(e.points, spatial.Point{
			ID:   int32(i),
			Pop:  s.Pop[i],
			Type: s.Type[i],
			Pos:  s.Pos[i],
		})
	}
	e.index.Rebuild(e.points)

	// Phase B: compute - choose single or parallel based on particle count
	e.snap = s
	if n < parallelThreshold {
		e.computeChunk(0, n, &e.scratches[0])
	} else {
		e.computeParallel(n)
	}
	e.snap = nil
	return nil
}

// computeParallel dispatches work to the worker pool.
func (e *CPUExecutor) computeParallel(n int) {
	// Ensure workers are running
	if !e.running {
		e.startWorkers()
	}

	chunkSize := (n + e.numWorkers - 1) / e.numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < e.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		e.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-e.doneChan
	}
}

// computeChunk processes a range of particles for a single worker.
// Each particle's next state depends only on the snapshot, so chunks never
// write shared state.
func (e *CPUExecutor) computeChunk(i0, i1 int, scratch *workerScratch) {
	s := e.snap
	p := &e.params
	for i := i0; i < i1; i++ {
		scratch.Neighbors = e.index.Query(scratch.Neighbors[:0], int32(i), p.MaxForceRange)
		ns := scratch.Neighbors
		acc := accumulate(p, s, i, func(yield func(mgl32.Vec3, uint8) bool) {
			for _, nb := range ns {
				if !yield(nb.Delta, nb.Type) {
					return
				}
			}
		})
		s.NextPos[i], s.NextVel[i] = Advance(s.Pos[i], s.Vel[i], acc, p)
	}
}

// startWorkers launches persistent worker goroutines.
func (e *CPUExecutor) startWorkers() {
	if e.running {
		return
	}

	e.workChan = make(chan workChunk, e.numWorkers)
	e.doneChan = make(chan struct{}, e.numWorkers)
	e.stopChan = make(chan struct{})
	e.running = true

	for i := 0; i < e.numWorkers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
}

// worker runs in a goroutine, processing chunks until stopped.
func (e *CPUExecutor) worker(workerID int) {
	defer e.wg.Done()
	scratch := &e.scratches[workerID]

	for {
		select {
		case <-e.stopChan:
			return
		case chunk, ok := <-e.workChan:
			if !ok {
				return
			}
			e.computeChunk(chunk.start, chunk.end, scratch)
			e.doneChan <- struct{}{}
		}
	}
}

// Close stops the worker pool. The executor may not be used afterwards.
func (e *CPUExecutor) Close() error {
	if !e.running {
		return nil
	}

	close(e.stopChan)
	e.wg.Wait()
	close(e.workChan)
	close(e.doneChan)
	e.running = false
	return nil
}
