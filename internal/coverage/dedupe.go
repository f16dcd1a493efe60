package coverage

import (
	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/couchcryptid/aed-placement/internal/spatial"
)

// exclusionMargin widens the planar neighbor query so projection error
// cannot hide a candidate that is within the radius on the sphere. Hits are
// confirmed with Haversine.
const exclusionMargin = 1.05

// Deduplicator walks score-sorted candidates and keeps those that are not
// within ExclusionRadius of an already accepted one.
type Deduplicator struct {
	Projection      geo.Projection
	ExclusionRadius float64
	Target          int
}

// Deduplicate returns at most Target recommendations, ranked from 1.
// candidates must already be in priority order (see Scorer.Score).
//
// On acceptance every later candidate within ExclusionRadius is marked
// used. Earlier candidates are never revisited and scores are not
// recomputed, so the list approximates greedy maximum coverage.
func (d Deduplicator) Deduplicate(candidates []domain.Candidate) []domain.Recommendation {
	if len(candidates) == 0 || d.Target <= 0 {
		return nil
	}

	pts := make([]spatial.Point, len(candidates))
	for i, c := range candidates {
		x, y := d.Projection.Project(c.Lat, c.Lon)
		pts[i] = spatial.Point{X: x, Y: y, ID: i}
	}
	index := spatial.New(pts)
	used := make([]bool, len(candidates))

	recs := make([]domain.Recommendation, 0, min(d.Target, len(candidates)))
	for i, c := range candidates {
		if used[i] {
			continue
		}
		recs = append(recs, domain.Recommendation{
			ID:            domain.RecommendationID(c.Lat, c.Lon),
			Rank:          len(recs) + 1,
			CandidateRank: i + 1,
			Lat:           c.Lat,
			Lon:           c.Lon,
			Region:        c.Region,
			Score:         c.Score,
		})
		if len(recs) == d.Target {
			break
		}

		for _, j := range index.Within(pts[i].X, pts[i].Y, d.ExclusionRadius*exclusionMargin) {
			if j <= i || used[j] {
				continue
			}
			o := candidates[j]
			if geo.Haversine(c.Lat, c.Lon, o.Lat, o.Lon) <= d.ExclusionRadius {
				used[j] = true
			}
		}
	}
	return recs
}
