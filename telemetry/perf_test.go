package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	// Simulate a few ticks
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseSnapshot)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseForces)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	// Verify we got timing data
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}

	// Verify phases are tracked
	if len(stats.PhaseAvg) == 0 {
		t.Error("expected phase averages to be populated")
	}

	if _, ok := stats.PhaseAvg[PhaseSnapshot]; !ok {
		t.Error("expected snapshot phase to be tracked")
	}

	if _, ok := stats.PhaseAvg[PhaseForces]; !ok {
		t.Error("expected forces phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5) // Small window

	// Fill window completely
	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseSnapshot)
		pc.EndTick()
	}

	stats := pc.Stats()

	// Should have data
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}

	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	// Simulate with uneven phase durations
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(100 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]

	// Slow phase should take more % than fast
	if slowPct <= fastPct {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", slowPct, fastPct)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	// Empty collector should return zero values without panicking
	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}

	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}

	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	pc := NewPerfCollector(4)
	for i := 0; i < 6; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseForces)
		time.Sleep(50 * time.Microsecond)
		pc.StartPhase(PhaseFood)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.Samples != 4 {
		t.Errorf("expected 4 samples in window, got %d", stats.Samples)
	}

	row := stats.ToCSV(7)
	if row.Epoch != 7 {
		t.Errorf("expected epoch 7, got %d", row.Epoch)
	}
	if row.ForcesPct <= 0 || row.ForcesPct > 100 {
		t.Errorf("expected forces pct in (0, 100], got %v", row.ForcesPct)
	}
	if row.EvolutionPct != 0 {
		t.Errorf("expected no evolution time, got %v", row.EvolutionPct)
	}
}

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPerfCollectorWindowEviction(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	pc := newPerfCollector(2, clk.now)

	tick := func(forces, food time.Duration) {
		pc.StartTick()
		pc.StartPhase(PhaseForces)
		clk.advance(forces)
		pc.StartPhase(PhaseFood)
		clk.advance(food)
		pc.EndTick()
	}
	tick(10*time.Millisecond, 0)
	tick(3*time.Millisecond, 1*time.Millisecond)
	tick(5*time.Millisecond, 3*time.Millisecond)

	stats := pc.Stats()
	if stats.Samples != 2 {
		t.Fatalf("samples: got %d, want 2", stats.Samples)
	}
	if got, want := stats.AvgTickDuration, 6*time.Millisecond; got != want {
		t.Errorf("avg tick: got %v, want %v", got, want)
	}
	if stats.MinTickDuration != 4*time.Millisecond || stats.MaxTickDuration != 8*time.Millisecond {
		t.Errorf("min/max: got %v/%v, want 4ms/8ms", stats.MinTickDuration, stats.MaxTickDuration)
	}
	if got, want := stats.PhaseAvg[PhaseForces], 4*time.Millisecond; got != want {
		t.Errorf("forces avg: got %v, want %v", got, want)
	}
	if got, want := stats.PhasePct[PhaseFood], 100*2.0/6.0; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("food pct: got %v, want %v", got, want)
	}
	if got, want := stats.TicksPerSecond, 1000.0/6.0; got < want-1e-6 || got > want+1e-6 {
		t.Errorf("ticks/s: got %v, want %v", got, want)
	}
}

func TestPerfCollectorReenteredPhase(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	pc := newPerfCollector(4, clk.now)

	pc.StartTick()
	clk.advance(time.Millisecond) // untracked lead-in
	pc.StartPhase(PhaseApply)
	clk.advance(2 * time.Millisecond)
	pc.StartPhase(PhaseFood)
	clk.advance(time.Millisecond)
	pc.StartPhase(PhaseApply)
	clk.advance(2 * time.Millisecond)
	pc.EndTick()

	stats := pc.Stats()
	if got := stats.PhaseAvg[PhaseApply]; got != 4*time.Millisecond {
		t.Errorf("apply: got %v, want 4ms", got)
	}
	if got := stats.AvgTickDuration; got != 6*time.Millisecond {
		t.Errorf("tick: got %v, want 6ms", got)
	}
}
