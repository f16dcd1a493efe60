package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Region is an administrative area with its population weight.
type Region struct {
	Name     string
	Boundary orb.MultiPolygon
	Weight   float64
}

// Facility is an installed AED.
type Facility struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GridPoint is one lattice sample of a region. RegionIndex points into the
// region slice the run was started with.
type GridPoint struct {
	Lat         float64
	Lon         float64
	RegionIndex int
	Weight      float64
}

// Candidate is an uncovered grid point with its marginal-gain score.
// PointIndex points into the run's grid point slice.
type Candidate struct {
	PointIndex int
	Lat        float64
	Lon        float64
	Region     string
	Score      float64
}

// Recommendation is one entry of the final ranked list.
type Recommendation struct {
	ID            string  `json:"id"`
	Rank          int     `json:"rank"`
	CandidateRank int     `json:"candidate_rank"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Region        string  `json:"region"`
	Score         float64 `json:"score"`

	// Reverse geocoding enrichment fields.
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
}

// RegionCoverage summarizes how well the existing facilities serve a region.
type RegionCoverage struct {
	Region          string   `json:"region"`
	GridPoints      int      `json:"grid_points"`
	CoveredPoints   int      `json:"covered_points"`
	CoverageRate    float64  `json:"coverage_rate"`
	Weight          float64  `json:"weight"`
	CoveredWeight   float64  `json:"covered_weight"`
	UncoveredWeight float64  `json:"uncovered_weight"`
	NearestFacility *float64 `json:"nearest_facility_m"` // nil when there are no facilities
}

// Summary aggregates a run.
type Summary struct {
	Regions         int     `json:"regions"`
	RejectedRegions int     `json:"rejected_regions"`
	Facilities      int     `json:"facilities"`
	GridPoints      int     `json:"grid_points"`
	CoveredPoints   int     `json:"covered_points"`
	TotalWeight     float64 `json:"total_weight"`
	CoveredWeight   float64 `json:"covered_weight"`
	UncoveredWeight float64 `json:"uncovered_weight"`
	Candidates      int     `json:"candidates"`
}

// Result is everything a run hands to its sinks.
type Result struct {
	RunID           string           `json:"run_id"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Params          Params           `json:"params"`
	Recommendations []Recommendation `json:"recommendations"`
	Coverage        []RegionCoverage `json:"coverage"`
	Summary         Summary          `json:"summary"`
	Rejected        []RegionError    `json:"rejected,omitempty"`
}
