package domain

import (
	"fmt"
	"math"
)

// Params configures one run. All distances are in meters.
type Params struct {
	GridSpacingMeters     float64 `json:"grid_spacing_m"`
	CoverageRadiusMeters  float64 `json:"coverage_radius_m"`
	ExclusionRadiusMeters float64 `json:"exclusion_radius_m"`
	TargetCount           int     `json:"target_count"`
	Workers               int     `json:"workers"`
}

// DefaultParams mirrors the municipal analysis the engine was built for:
// 50 m lattice, 300 m walking coverage, 500 m between suggestions, top 20.
func DefaultParams() Params {
	return Params{
		GridSpacingMeters:     50,
		CoverageRadiusMeters:  300,
		ExclusionRadiusMeters: 500,
		TargetCount:           20,
		Workers:               1,
	}
}

// Validate rejects parameters that would silently produce empty grids or
// unbounded loops. Every error wraps ErrInvalidConfiguration.
func (p Params) Validate() error {
	distances := []struct {
		name  string
		value float64
	}{
		{"grid spacing", p.GridSpacingMeters},
		{"coverage radius", p.CoverageRadiusMeters},
		{"exclusion radius", p.ExclusionRadiusMeters},
	}
	for _, d := range distances {
		if math.IsNaN(d.value) || math.IsInf(d.value, 0) || d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidConfiguration, d.name, d.value)
		}
	}
	if p.TargetCount <= 0 {
		return fmt.Errorf("%w: target count must be positive, got %d", ErrInvalidConfiguration, p.TargetCount)
	}
	if p.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfiguration, p.Workers)
	}
	return nil
}
