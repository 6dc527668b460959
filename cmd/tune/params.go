package main

import (
	"github.com/pthm-cable/plife/config"
)

// ParamSpec defines a single tunable genetics parameter.
type ParamSpec struct {
	Name string  // column name in the tune log
	Path string  // config path for logging
	Min  float64 // lower bound
	Max  float64 // upper bound

	get func(*config.Config) float64
	set func(*config.Config, float64)
}

// ParamVector holds the set of tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of genetics parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{
				Name: "mutation_rate", Path: "genetics.mutation_rate", Min: 0.01, Max: 0.5,
				get: func(c *config.Config) float64 { return c.Genetics.MutationRate },
				set: func(c *config.Config, v float64) { c.Genetics.MutationRate = v },
			},
			{
				Name: "elite_ratio", Path: "genetics.elite_ratio", Min: 0.05, Max: 0.5,
				get: func(c *config.Config) float64 { return c.Genetics.EliteRatio },
				set: func(c *config.Config, v float64) { c.Genetics.EliteRatio = v },
			},
			{
				Name: "crossover_rate", Path: "genetics.crossover_rate", Min: 0.0, Max: 1.0,
				get: func(c *config.Config) float64 { return c.Genetics.CrossoverRate },
				set: func(c *config.Config, v float64) { c.Genetics.CrossoverRate = v },
			},
			{
				Name: "coherence_threshold", Path: "genetics.coherence_threshold", Min: 0.0, Max: 0.9,
				get: func(c *config.Config) float64 { return c.Genetics.CoherenceThreshold },
				set: func(c *config.Config, v float64) { c.Genetics.CoherenceThreshold = v },
			},
			{
				Name: "injection_ratio", Path: "genetics.injection_ratio", Min: 0.0, Max: 0.5,
				get: func(c *config.Config) float64 { return c.Genetics.InjectionRatio },
				set: func(c *config.Config, v float64) { c.Genetics.InjectionRatio = v },
			},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg and refreshes its
// derived values.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
	return cfg.Refresh()
}

// ExtractFromConfig reads the current parameter values from cfg, clamped to
// the search bounds.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.get(cfg)
	}
	return pv.Clamp(v)
}
