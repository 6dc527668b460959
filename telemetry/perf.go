package telemetry

import (
	"log/slog"
	"time"
)

// Tick phases timed by the run loop.
const (
	PhaseSnapshot  = "snapshot"
	PhaseForces    = "forces" // index rebuild plus executor step
	PhaseApply     = "apply"
	PhaseFood      = "food"
	PhaseEvolution = "evolution"
)

// Phases is the order phases run in within a tick.
var Phases = []string{PhaseSnapshot, PhaseForces, PhaseApply, PhaseFood, PhaseEvolution}

// PerfSample is one tick's wall time split by phase.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector keeps the last few ticks in a ring and reports their
// averages. Phase sums are maintained incrementally as samples enter and
// leave the ring.
type PerfCollector struct {
	now func() time.Time

	ring []PerfSample
	next int
	n    int

	tickSum  time.Duration
	phaseSum map[string]time.Duration

	cur        map[string]time.Duration
	tickStart  time.Time
	phaseStart time.Time
	phase      string
}

// NewPerfCollector averages over the last window ticks (60 when window < 1).
func NewPerfCollector(window int) *PerfCollector {
	return newPerfCollector(window, time.Now)
}

func newPerfCollector(window int, now func() time.Time) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		now:      now,
		ring:     make([]PerfSample, window),
		phaseSum: make(map[string]time.Duration),
		cur:      make(map[string]time.Duration),
	}
}

// StartTick opens a tick. Time before the first StartPhase counts toward the
// tick but no phase.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.cur = make(map[string]time.Duration, len(Phases))
	p.phase = ""
}

// StartPhase closes the running phase, if any, and opens the named one.
// Re-entering a phase within a tick accumulates.
func (p *PerfCollector) StartPhase(phase string) {
	t := p.now()
	p.closePhase(t)
	p.phase = phase
	p.phaseStart = t
}

func (p *PerfCollector) closePhase(t time.Time) {
	if p.phase != "" {
		p.cur[p.phase] += t.Sub(p.phaseStart)
	}
}

// EndTick closes the tick and pushes it into the ring, evicting the oldest
// sample once the ring is full.
func (p *PerfCollector) EndTick() {
	t := p.now()
	p.closePhase(t)
	p.phase = ""

	if p.n == len(p.ring) {
		old := p.ring[p.next]
		p.tickSum -= old.TickDuration
		for name, d := range old.Phases {
			p.phaseSum[name] -= d
		}
	} else {
		p.n++
	}

	s := PerfSample{TickDuration: t.Sub(p.tickStart), Phases: p.cur}
	p.ring[p.next] = s
	p.next = (p.next + 1) % len(p.ring)
	p.tickSum += s.TickDuration
	for name, d := range s.Phases {
		p.phaseSum[name] += d
	}
}

// PerfStats summarises the ticks currently in the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	PhaseAvg map[string]time.Duration // mean per tick
	PhasePct map[string]float64       // share of the mean tick, 0-100

	TicksPerSecond float64
	Samples        int
}

// Stats reports the window. An empty collector yields zero durations and
// empty, non-nil maps.
func (p *PerfCollector) Stats() PerfStats {
	st := PerfStats{
		PhaseAvg: make(map[string]time.Duration, len(p.phaseSum)),
		PhasePct: make(map[string]float64, len(p.phaseSum)),
		Samples:  p.n,
	}
	if p.n == 0 {
		return st
	}

	for i, s := range p.ring[:p.n] {
		if i == 0 || s.TickDuration < st.MinTickDuration {
			st.MinTickDuration = s.TickDuration
		}
		st.MaxTickDuration = max(st.MaxTickDuration, s.TickDuration)
	}

	count := time.Duration(p.n)
	st.AvgTickDuration = p.tickSum / count
	for name, sum := range p.phaseSum {
		if sum <= 0 {
			continue
		}
		avg := sum / count
		st.PhaseAvg[name] = avg
		if st.AvgTickDuration > 0 {
			st.PhasePct[name] = 100 * float64(avg) / float64(st.AvgTickDuration)
		}
	}
	if st.AvgTickDuration > 0 {
		st.TicksPerSecond = float64(time.Second) / float64(st.AvgTickDuration)
	}
	return st
}

// LogStats writes one "perf" line with phases over 0.1% of the tick.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	for _, phase := range Phases {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue groups the stats under one key, e.g. slog.Any("perf", stats).
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	Epoch        int     `csv:"epoch"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	SnapshotPct  float64 `csv:"snapshot_pct"`
	ForcesPct    float64 `csv:"forces_pct"`
	ApplyPct     float64 `csv:"apply_pct"`
	FoodPct      float64 `csv:"food_pct"`
	EvolutionPct float64 `csv:"evolution_pct"`
}

// ToCSV flattens the stats for the given epoch. Phases outside Phases are
// dropped.
func (s PerfStats) ToCSV(epoch int) PerfStatsCSV {
	return PerfStatsCSV{
		Epoch:        epoch,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		MinTickUS:    s.MinTickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		SnapshotPct:  s.PhasePct[PhaseSnapshot],
		ForcesPct:    s.PhasePct[PhaseForces],
		ApplyPct:     s.PhasePct[PhaseApply],
		FoodPct:      s.PhasePct[PhaseFood],
		EvolutionPct: s.PhasePct[PhaseEvolution],
	}
}
