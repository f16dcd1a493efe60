package coverage

import (
	"math"

	"github.com/couchcryptid/aed-placement/internal/domain"
)

// Report builds a per-region coverage summary. covered and nearest are
// parallel to points. Regions without points (rejected ones) are skipped.
func Report(regions []domain.Region, points []domain.GridPoint, covered []bool, nearest []float64) []domain.RegionCoverage {
	type acc struct {
		points, covered int
		weight, cw      float64
		nearest         float64
	}
	accs := make([]acc, len(regions))
	for i := range accs {
		accs[i].nearest = math.Inf(1)
	}

	for i, p := range points {
		a := &accs[p.RegionIndex]
		a.points++
		a.weight += p.Weight
		if covered[i] {
			a.covered++
			a.cw += p.Weight
		}
		if i < len(nearest) && nearest[i] < a.nearest {
			a.nearest = nearest[i]
		}
	}

	var out []domain.RegionCoverage
	for i, a := range accs {
		if a.points == 0 {
			continue
		}
		rc := domain.RegionCoverage{
			Region:          regions[i].Name,
			GridPoints:      a.points,
			CoveredPoints:   a.covered,
			CoverageRate:    float64(a.covered) / float64(a.points),
			Weight:          a.weight,
			CoveredWeight:   a.cw,
			UncoveredWeight: a.weight - a.cw,
		}
		if !math.IsInf(a.nearest, 1) {
			d := a.nearest
			rc.NearestFacility = &d
		}
		out = append(out, rc)
	}
	return out
}

// Summarize totals a coverage report.
func Summarize(report []domain.RegionCoverage, rejected, facilities, candidates int) domain.Summary {
	s := domain.Summary{
		Regions:         len(report),
		RejectedRegions: rejected,
		Facilities:      facilities,
		Candidates:      candidates,
	}
	for _, rc := range report {
		s.GridPoints += rc.GridPoints
		s.CoveredPoints += rc.CoveredPoints
		s.TotalWeight += rc.Weight
		s.CoveredWeight += rc.CoveredWeight
		s.UncoveredWeight += rc.UncoveredWeight
	}
	return s
}
