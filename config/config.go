// Package config provides configuration loading for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Boundary mode names accepted in grid.boundary.
const (
	BoundaryBounce   = "bounce"
	BoundaryTeleport = "teleport"
)

// Genome codecs accepted in genetics.codec.
const (
	CodecVector = "vector"
	CodecPacked = "packed"
)

// Executor names accepted in simulation.executor.
const (
	ExecutorCPU = "cpu"
	ExecutorGPU = "gpu"
)

// ErrInvalid is returned (wrapped) when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
// It is loaded once at run start and treated as read-only afterwards.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Grid       GridConfig       `yaml:"grid"`
	Food       FoodConfig       `yaml:"food"`
	Genetics   GeneticsConfig   `yaml:"genetics"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	HallOfFame HallOfFameConfig `yaml:"hall_of_fame"`
	Archive    ArchiveConfig    `yaml:"archive"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds population and physics parameters.
type SimulationConfig struct {
	SimulationCount  int     `yaml:"simulation_count"`
	ParticleCount    int     `yaml:"particle_count"`
	ParticleTypes    int     `yaml:"particle_types"`
	EpochDuration    float64 `yaml:"epoch_duration"` // seconds of simulated time
	DT               float64 `yaml:"dt"`             // fixed physical timestep
	VelocityHalfLife float64 `yaml:"velocity_half_life"`
	MaxVelocity      float64 `yaml:"max_velocity"`
	MaxForceRange    float64 `yaml:"max_force_range"`
	ParticleRadius   float64 `yaml:"particle_radius"`
	MaxInteractions  int     `yaml:"max_interactions"` // per particle per tick
	Executor         string  `yaml:"executor"`         // cpu | gpu
	Workers          int     `yaml:"workers"`          // 0 = GOMAXPROCS
}

// GridConfig holds the domain extents and boundary policy.
type GridConfig struct {
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	Depth            float64 `yaml:"depth"`
	Boundary         string  `yaml:"boundary"` // bounce | teleport
	CollisionDamping float64 `yaml:"collision_damping"`
}

// FoodConfig holds the shared food pool parameters.
type FoodConfig struct {
	Count           int     `yaml:"count"`
	RespawnEnabled  bool    `yaml:"respawn_enabled"`
	RespawnCooldown float64 `yaml:"respawn_cooldown"`
	Value           float64 `yaml:"value"`
	Radius          float64 `yaml:"radius"`
}

// GeneticsConfig holds genetic algorithm tunables.
type GeneticsConfig struct {
	EliteRatio         float64 `yaml:"elite_ratio"`
	MutationRate       float64 `yaml:"mutation_rate"`
	CrossoverRate      float64 `yaml:"crossover_rate"`
	CoherenceThreshold float64 `yaml:"coherence_threshold"`
	DiversityThreshold float64 `yaml:"diversity_threshold"` // below this, inject random genomes
	InjectionRatio     float64 `yaml:"injection_ratio"`     // fraction of non-elites replaced
	MutationRetries    int     `yaml:"mutation_retries"`
	EliteMutation      float64 `yaml:"elite_mutation"` // chance an elite gets a light mutation
	MutationSigma      float64 `yaml:"mutation_sigma"` // gaussian step as a fraction of max force
	Codec              string  `yaml:"codec"`          // vector | packed
}

// TelemetryConfig holds logging and output parameters.
type TelemetryConfig struct {
	LogEpochs  bool `yaml:"log_epochs"`
	PerfWindow int  `yaml:"perf_window"` // ticks averaged by the perf collector
}

// HallOfFameConfig controls the cross-epoch genome hall of fame.
type HallOfFameConfig struct {
	Size   int  `yaml:"size"`
	Reseed bool `yaml:"reseed"` // draw diversity injections from the hall instead of pure random
}

// ArchiveConfig selects the population archive backend.
type ArchiveConfig struct {
	Backend string `yaml:"backend"` // memory | json | sqlite
	Path    string `yaml:"path"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	DT32           float32
	HalfLife32     float32
	MaxVelocity32  float32
	ForceRange32   float32
	Radius32       float32
	FoodRadius32   float32
	Damping32      float32
	MinR           float32 // particle_types * particle_radius
	Extent         mgl32.Vec3
	Teleport       bool
	TicksPerEpoch  int
	FoodCooldown32 float32
	FoodValue32    float32
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Default returns the embedded defaults. It panics if they do not parse,
// which can only happen if defaults.yaml itself is broken.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Validate checks parameter ranges.
func (c *Config) Validate() error {
	s := c.Simulation
	switch {
	case s.SimulationCount < 0:
		return fmt.Errorf("%w: simulation_count %d", ErrInvalid, s.SimulationCount)
	case s.ParticleCount < 0:
		return fmt.Errorf("%w: particle_count %d", ErrInvalid, s.ParticleCount)
	case s.ParticleTypes < 1:
		return fmt.Errorf("%w: particle_types %d", ErrInvalid, s.ParticleTypes)
	case s.DT <= 0:
		return fmt.Errorf("%w: dt %v", ErrInvalid, s.DT)
	case s.EpochDuration <= 0:
		return fmt.Errorf("%w: epoch_duration %v", ErrInvalid, s.EpochDuration)
	case s.VelocityHalfLife <= 0:
		return fmt.Errorf("%w: velocity_half_life %v", ErrInvalid, s.VelocityHalfLife)
	case s.MaxForceRange <= 0:
		return fmt.Errorf("%w: max_force_range %v", ErrInvalid, s.MaxForceRange)
	case s.Executor != ExecutorCPU && s.Executor != ExecutorGPU:
		return fmt.Errorf("%w: executor %q", ErrInvalid, s.Executor)
	}

	g := c.Grid
	if g.Width <= 0 || g.Height <= 0 || g.Depth <= 0 {
		return fmt.Errorf("%w: grid extents %vx%vx%v", ErrInvalid, g.Width, g.Height, g.Depth)
	}
	if g.Boundary != BoundaryBounce && g.Boundary != BoundaryTeleport {
		return fmt.Errorf("%w: boundary %q", ErrInvalid, g.Boundary)
	}

	if c.Food.Count < 0 {
		return fmt.Errorf("%w: food count %d", ErrInvalid, c.Food.Count)
	}

	gen := c.Genetics
	for name, v := range map[string]float64{
		"elite_ratio":         gen.EliteRatio,
		"mutation_rate":       gen.MutationRate,
		"crossover_rate":      gen.CrossoverRate,
		"coherence_threshold": gen.CoherenceThreshold,
		"injection_ratio":     gen.InjectionRatio,
		"elite_mutation":      gen.EliteMutation,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalid, name, v)
		}
	}
	if gen.Codec != CodecVector && gen.Codec != CodecPacked {
		return fmt.Errorf("%w: codec %q", ErrInvalid, gen.Codec)
	}
	if gen.CoherenceThreshold >= 1 {
		return fmt.Errorf("%w: coherence_threshold must be below 1", ErrInvalid)
	}

	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	s := c.Simulation
	c.Derived.DT32 = float32(s.DT)
	c.Derived.HalfLife32 = float32(s.VelocityHalfLife)
	c.Derived.MaxVelocity32 = float32(s.MaxVelocity)
	c.Derived.ForceRange32 = float32(s.MaxForceRange)
	c.Derived.Radius32 = float32(s.ParticleRadius)
	c.Derived.FoodRadius32 = float32(c.Food.Radius)
	c.Derived.Damping32 = float32(c.Grid.CollisionDamping)
	c.Derived.MinR = float32(s.ParticleTypes) * float32(s.ParticleRadius)
	c.Derived.Extent = mgl32.Vec3{float32(c.Grid.Width), float32(c.Grid.Height), float32(c.Grid.Depth)}
	c.Derived.Teleport = c.Grid.Boundary == BoundaryTeleport
	c.Derived.TicksPerEpoch = int(s.EpochDuration/s.DT + 0.5)
	if c.Derived.TicksPerEpoch < 1 {
		c.Derived.TicksPerEpoch = 1
	}
	c.Derived.FoodCooldown32 = float32(c.Food.RespawnCooldown)
	c.Derived.FoodValue32 = float32(c.Food.Value)
}

// Refresh recomputes derived values after fields were changed in code
// (for example by the tuner). It validates first.
func (c *Config) Refresh() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
