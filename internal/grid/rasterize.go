// Package grid turns region polygons into weighted lattice samples.
package grid

import (
	"fmt"
	"math"

	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// edgeTolerance is how close (in degrees, about 0.1 mm) a lattice point may
// come to a ring edge before it counts as on the boundary.
const edgeTolerance = 1e-9

// Rasterize returns the lattice points strictly inside boundary. The lattice
// starts at the bounding box minimum corner and steps spacingMeters in both
// directions, converted to degrees at the box's vertical midpoint. Points on
// a ring edge, or inside a hole, are dropped.
//
// A boundary too small to hold any lattice point yields its centroid, so
// every region contributes at least one point.
func Rasterize(boundary orb.MultiPolygon, spacingMeters float64) ([]orb.Point, error) {
	if !(spacingMeters > 0) || math.IsInf(spacingMeters, 0) {
		return nil, fmt.Errorf("%w: grid spacing %v", domain.ErrInvalidConfiguration, spacingMeters)
	}
	if len(boundary) == 0 {
		return nil, fmt.Errorf("%w: no polygons", domain.ErrInvalidGeometry)
	}

	b := boundary.Bound()
	midLat := (b.Min[1] + b.Max[1]) / 2
	latStep, lonStep, err := geo.DegreeSpacing(spacingMeters, midLat)
	if err != nil {
		return nil, err
	}

	rows := steps(b.Min[1], b.Max[1], latStep)
	cols := steps(b.Min[0], b.Max[0], lonStep)

	var pts []orb.Point
	for i := 0; i < rows; i++ {
		lat := b.Min[1] + float64(i)*latStep
		for j := 0; j < cols; j++ {
			p := orb.Point{b.Min[0] + float64(j)*lonStep, lat}
			if strictlyInside(boundary, p) {
				pts = append(pts, p)
			}
		}
	}

	if len(pts) == 0 {
		return []orb.Point{Centroid(boundary)}, nil
	}
	return pts, nil
}

// steps counts lattice positions min + k*step that do not pass max.
func steps(lo, hi, step float64) int {
	return int(math.Floor((hi-lo)/step)) + 1
}

// Centroid returns the area-weighted centroid of boundary, or the bounding
// box center when the centroid is not finite (zero-area input).
func Centroid(boundary orb.MultiPolygon) orb.Point {
	c, area := planar.CentroidArea(boundary)
	if area > 0 && finite(c[0]) && finite(c[1]) {
		return c
	}
	return boundary.Bound().Center()
}

func strictlyInside(mp orb.MultiPolygon, p orb.Point) bool {
	if !planar.MultiPolygonContains(mp, p) {
		return false
	}
	for _, poly := range mp {
		for _, ring := range poly {
			if onRing(ring, p) {
				return false
			}
		}
	}
	return true
}

func onRing(r orb.Ring, p orb.Point) bool {
	n := len(r)
	for k := 0; k < n; k++ {
		a, b := r[k], r[(k+1)%n]
		if segmentDistance(a, b, p) <= edgeTolerance {
			return true
		}
	}
	return false
}

// segmentDistance is the planar distance from p to segment ab, in degrees.
func segmentDistance(a, b, p orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p[0]-(a[0]+t*dx), p[1]-(a[1]+t*dy))
}
