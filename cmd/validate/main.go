// Command validate re-checks a recommendations CSV against the regions and
// facilities it was computed from. Distances are measured with S2 geodesics,
// independently of the engine's planar approximation.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -regions data/mock/wards.geojson \
//	  -facilities data/mock/aed.csv \
//	  -recommendations recommendations.csv
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/aed-placement/internal/adapter/csvfile"
	"github.com/couchcryptid/aed-placement/internal/adapter/geojson"
	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// coverageSlack absorbs the difference between the engine's planar distance
// and the geodesic one near the coverage boundary.
const coverageSlack = 0.01

// roundingSlack is how far, in degrees, a coordinate printed with six
// decimals can move.
const roundingSlack = 1e-6

type checkParams struct {
	coverageRadius  float64
	exclusionRadius float64
	target          int
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	regionsPath := flag.String("regions", "", "regions GeoJSON the run used")
	facilitiesPath := flag.String("facilities", "", "facilities CSV the run used")
	recsPath := flag.String("recommendations", "", "recommendations CSV to check")
	defaults := domain.DefaultParams()
	var params checkParams
	flag.Float64Var(&params.coverageRadius, "coverage-m", defaults.CoverageRadiusMeters, "coverage radius the run used")
	flag.Float64Var(&params.exclusionRadius, "exclusion-m", defaults.ExclusionRadiusMeters, "exclusion radius the run used")
	flag.IntVar(&params.target, "target", defaults.TargetCount, "target count the run used")
	flag.Parse()

	if *regionsPath == "" || *facilitiesPath == "" || *recsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*regionsPath, *facilitiesPath, *recsPath, params); code != 0 {
		os.Exit(code)
	}
}

func run(regionsPath, facilitiesPath, recsPath string, params checkParams) int {
	fmt.Println("=== AED Placement Validation ===")
	fmt.Println()

	regions, err := loadRegions(regionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load regions: %v\n", err)
		return 1
	}
	facilities, err := loadFacilities(facilitiesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load facilities: %v\n", err)
		return 1
	}
	recs, err := loadRecommendations(recsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load recommendations: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRanking(recs, params.target),
		validateSeparation(recs, params.exclusionRadius),
		validateUncovered(recs, facilities, params.coverageRadius),
		validatePlacement(recs, regions),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Inputs: %d regions, %d facilities, %d recommendations\n", len(regions), len(facilities), len(recs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadRegions(path string) ([]domain.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := geojson.ParseRegions(data)
	if err != nil {
		return nil, err
	}
	for _, r := range c.Rejected {
		fmt.Printf("  skipping %v\n", r)
	}
	return c.Regions, nil
}

func loadFacilities(path string) ([]domain.Facility, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	facilities, _, err := csvfile.ReadFacilities(f)
	return facilities, err
}

func loadRecommendations(path string) ([]domain.Recommendation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvfile.ReadRecommendations(f)
}

// ── Phases ──

// validateRanking checks ranks are 1..n, scores never increase, candidate
// ranks strictly increase and IDs derive from the coordinates.
func validateRanking(recs []domain.Recommendation, target int) *phase {
	p := &phase{name: "Phase 1: Ranking"}
	if len(recs) > target {
		p.errorf("%d recommendations exceed target %d", len(recs), target)
	}
	for i, r := range recs {
		if r.Rank != i+1 {
			p.errorf("row %d: rank %d, want %d", i+1, r.Rank, i+1)
		}
		if r.Score <= 0 || math.IsNaN(r.Score) {
			p.errorf("rank %d: non-positive score %v", r.Rank, r.Score)
		}
		if want := domain.RecommendationID(r.Lat, r.Lon); r.ID != want {
			p.errorf("rank %d: id %s, want %s", r.Rank, r.ID, want)
		}
		if i == 0 {
			continue
		}
		prev := recs[i-1]
		if r.Score > prev.Score {
			p.errorf("rank %d: score %.4f above rank %d score %.4f", r.Rank, r.Score, prev.Rank, prev.Score)
		}
		if r.CandidateRank <= prev.CandidateRank {
			p.errorf("rank %d: candidate rank %d not after %d", r.Rank, r.CandidateRank, prev.CandidateRank)
		}
	}
	return p
}

// validateSeparation checks every pair is farther apart than the exclusion
// radius.
func validateSeparation(recs []domain.Recommendation, exclusion float64) *phase {
	p := &phase{name: "Phase 2: Separation (S2 geodesic)"}
	for i := range recs {
		for j := i + 1; j < len(recs); j++ {
			d := geodesic(recs[i].Lat, recs[i].Lon, recs[j].Lat, recs[j].Lon)
			if d <= exclusion {
				p.errorf("ranks %d and %d are %.1f m apart (exclusion %.0f m)", recs[i].Rank, recs[j].Rank, d, exclusion)
			}
		}
	}
	return p
}

// validateUncovered checks no recommendation sits clearly inside an existing
// facility's coverage.
func validateUncovered(recs []domain.Recommendation, facilities []domain.Facility, radius float64) *phase {
	p := &phase{name: "Phase 3: Outside existing coverage"}
	limit := radius * (1 - coverageSlack)
	for _, r := range recs {
		for fi, f := range facilities {
			if d := geodesic(r.Lat, r.Lon, f.Lat, f.Lon); d <= limit {
				p.errorf("rank %d: %.1f m from facility %d (coverage %.0f m)", r.Rank, d, fi+1, radius)
				break
			}
		}
	}
	return p
}

// validatePlacement checks each recommendation lies inside the region it
// names.
func validatePlacement(recs []domain.Recommendation, regions []domain.Region) *phase {
	p := &phase{name: "Phase 4: Inside named region"}
	byName := make(map[string][]orb.MultiPolygon, len(regions))
	for _, r := range regions {
		byName[r.Name] = append(byName[r.Name], r.Boundary)
	}
	for _, r := range recs {
		boundaries, ok := byName[r.Region]
		if !ok {
			p.errorf("rank %d: unknown region %q", r.Rank, r.Region)
			continue
		}
		pt := orb.Point{r.Lon, r.Lat}
		inside := false
		for _, b := range boundaries {
			if planar.MultiPolygonContains(b, pt) || planar.DistanceFrom(b, pt) <= roundingSlack {
				inside = true
				break
			}
		}
		if !inside {
			p.errorf("rank %d: %.6f,%.6f outside %q", r.Rank, r.Lat, r.Lon, r.Region)
		}
	}
	return p
}

func geodesic(lat1, lon1, lat2, lon2 float64) float64 {
	return s2.LatLngFromDegrees(lat1, lon1).Distance(s2.LatLngFromDegrees(lat2, lon2)).Radians() * geo.EarthRadiusMeters
}
