package main

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/plife/config"
	"github.com/pthm-cable/plife/physics"
)

func TestReplayHostDeviceMatchesCPU(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.SimulationCount = 2
	cfg.Simulation.ParticleCount = 40
	cfg.Food.Count = 6
	if err := cfg.Refresh(); err != nil {
		t.Fatal(err)
	}
	p := physics.ParamsFrom(cfg)
	base := randomSnapshot(rand.New(rand.NewSource(5)), cfg, p)

	cpu := physics.NewCPUExecutor(p, 2)
	defer cpu.Close()
	host := physics.NewGPUExecutor(p, physics.NewHostDevice(2))
	defer host.Close()

	rows, err := replay(cpu, host, base, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	for _, r := range rows {
		if r.MaxPosDrift > 1e-3 || r.MaxVelDrift > 1e-3 {
			t.Errorf("step %d: drift pos=%v vel=%v", r.Step, r.MaxPosDrift, r.MaxVelDrift)
		}
	}
}

func TestMaxRelDrift(t *testing.T) {
	a := []mgl32.Vec3{{0, 0, 0}, {10, 0, 0}}
	b := []mgl32.Vec3{{0, 0, 0}, {11, 0, 0}}
	d, at := maxRelDrift(a, b)
	if at != 1 || d < 0.09 || d > 0.091 {
		t.Errorf("maxRelDrift = %v at %d, want ~0.0909 at 1", d, at)
	}
	if _, at := maxRelDrift(a, a); at != -1 {
		t.Errorf("identical input reported particle %d", at)
	}
}
