package coverage

import (
	"cmp"
	"slices"

	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/couchcryptid/aed-placement/internal/spatial"
)

// Scorer computes marginal-gain scores for uncovered points.
type Scorer struct {
	Projection geo.Projection
	Radius     float64
	Workers    int
}

// Score returns one candidate per uncovered point. A candidate's score is
// the total weight of uncovered points within Radius of it, itself included.
// Scores are computed once; they are not reduced as candidates get picked.
//
// Candidates come back sorted by score descending, then latitude, longitude
// and point index ascending. regions resolves GridPoint.RegionIndex.
func (s Scorer) Score(points []domain.GridPoint, covered []bool, regions []domain.Region) []domain.Candidate {
	var uncovered []int
	for i := range points {
		if !covered[i] {
			uncovered = append(uncovered, i)
		}
	}
	if len(uncovered) == 0 {
		return nil
	}

	xs := make([]float64, len(uncovered))
	ys := make([]float64, len(uncovered))
	ipts := make([]spatial.Point, len(uncovered))
	for k, pi := range uncovered {
		xs[k], ys[k] = s.Projection.Project(points[pi].Lat, points[pi].Lon)
		ipts[k] = spatial.Point{X: xs[k], Y: ys[k], ID: k}
	}
	index := spatial.New(ipts)

	cands := make([]domain.Candidate, len(uncovered))
	parallelFor(len(uncovered), s.Workers, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			var score float64
			// Within returns ascending IDs, which fixes the summation order.
			for _, n := range index.Within(xs[k], ys[k], s.Radius) {
				score += points[uncovered[n]].Weight
			}
			p := points[uncovered[k]]
			cands[k] = domain.Candidate{
				PointIndex: uncovered[k],
				Lat:        p.Lat,
				Lon:        p.Lon,
				Region:     regionName(regions, p.RegionIndex),
				Score:      score,
			}
		}
	})

	slices.SortFunc(cands, compareCandidates)
	return cands
}

func compareCandidates(a, b domain.Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Lat, b.Lat); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Lon, b.Lon); c != 0 {
		return c
	}
	return cmp.Compare(a.PointIndex, b.PointIndex)
}

func regionName(regions []domain.Region, i int) string {
	if i < 0 || i >= len(regions) {
		return ""
	}
	return regions[i].Name
}
