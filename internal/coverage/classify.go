// Package coverage classifies grid points against existing facilities,
// scores uncovered points by marginal gain, and picks a spread-out ranked
// subset of them.
//
// All spatial lookups go through immutable k-d trees built over the run's
// planar projection. The trees are shared by worker goroutines without
// locking.
package coverage

import (
	"math"

	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/couchcryptid/aed-placement/internal/spatial"
)

// Classifier answers nearest-facility questions for grid points.
type Classifier struct {
	facilities []domain.Facility
	projection geo.Projection
	index      *spatial.Index
	workers    int
}

// NewClassifier indexes facilities in the projection's planar frame.
// workers bounds query parallelism; values below one mean serial.
func NewClassifier(facilities []domain.Facility, projection geo.Projection, workers int) *Classifier {
	pts := make([]spatial.Point, len(facilities))
	for i, f := range facilities {
		x, y := projection.Project(f.Lat, f.Lon)
		pts[i] = spatial.Point{X: x, Y: y, ID: i}
	}
	return &Classifier{
		facilities: facilities,
		projection: projection,
		index:      spatial.New(pts),
		workers:    workers,
	}
}

// Classify reports, per point, whether the nearest facility lies within
// radius meters in the planar frame. With no facilities every point is
// uncovered.
func (c *Classifier) Classify(points []domain.GridPoint, radius float64) []bool {
	covered := make([]bool, len(points))
	if c.index.Len() == 0 {
		return covered
	}
	parallelFor(len(points), c.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			x, y := c.projection.Project(points[i].Lat, points[i].Lon)
			_, d, ok := c.index.Nearest(x, y)
			covered[i] = ok && d <= radius
		}
	})
	return covered
}

// NearestDistances returns the haversine distance in meters from each point
// to its planar-nearest facility, or +Inf when there are no facilities.
func (c *Classifier) NearestDistances(points []domain.GridPoint) []float64 {
	out := make([]float64, len(points))
	parallelFor(len(points), c.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			x, y := c.projection.Project(points[i].Lat, points[i].Lon)
			id, _, ok := c.index.Nearest(x, y)
			if !ok {
				out[i] = math.Inf(1)
				continue
			}
			f := c.facilities[id]
			out[i] = geo.Haversine(points[i].Lat, points[i].Lon, f.Lat, f.Lon)
		}
	})
	return out
}
