package physics

import (
	"fmt"

	"github.com/pthm-cable/plife/config"
)

// ForceExecutor advances a snapshot by one physical step. Implementations
// read Pos, Vel, Type, Pop, Food and Tables and write NextPos and NextVel.
// Exactly one executor is active for a run.
type ForceExecutor interface {
	Name() string
	Step(s *Snapshot) error
	Close() error
}

// NewExecutor creates the executor named by kind (cpu or gpu).
// workers <= 0 means GOMAXPROCS.
func NewExecutor(kind string, p Params, workers int) (ForceExecutor, error) {
	switch kind {
	case config.ExecutorCPU, "":
		return NewCPUExecutor(p, workers), nil
	case config.ExecutorGPU:
		dev, err := DefaultDevice(workers)
		if err != nil {
			return nil, fmt.Errorf("opening compute device: %w", err)
		}
		return NewGPUExecutor(p, dev), nil
	}
	return nil, fmt.Errorf("unknown executor %q", kind)
}
