package grid

import (
	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/paulmach/orb"
)

// Distribute splits the region weight evenly across points. regionIndex is
// stamped on every result. points must be non-empty, which Rasterize
// guarantees.
func Distribute(region domain.Region, regionIndex int, points []orb.Point) []domain.GridPoint {
	if len(points) == 0 {
		return nil
	}
	w := region.Weight / float64(len(points))
	out := make([]domain.GridPoint, len(points))
	for i, p := range points {
		out[i] = domain.GridPoint{
			Lat:         p[1],
			Lon:         p[0],
			RegionIndex: regionIndex,
			Weight:      w,
		}
	}
	return out
}
