package grid

import (
	"fmt"
	"math"

	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Validate checks that a boundary can be rasterized. Failures wrap
// domain.ErrInvalidGeometry. Geometry is never repaired.
func Validate(boundary orb.MultiPolygon) error {
	if len(boundary) == 0 {
		return fmt.Errorf("%w: no polygons", domain.ErrInvalidGeometry)
	}
	for pi, poly := range boundary {
		if len(poly) == 0 {
			return fmt.Errorf("%w: polygon %d has no rings", domain.ErrInvalidGeometry, pi)
		}
		for ri, ring := range poly {
			if err := validateRing(ring); err != nil {
				return fmt.Errorf("%w: polygon %d ring %d: %s", domain.ErrInvalidGeometry, pi, ri, err)
			}
		}
		if planar.Area(poly) == 0 {
			return fmt.Errorf("%w: polygon %d has zero area", domain.ErrInvalidGeometry, pi)
		}
	}
	return nil
}

func validateRing(r orb.Ring) error {
	for _, p := range r {
		if !finite(p[0]) || !finite(p[1]) {
			return fmt.Errorf("non-finite vertex %v", p)
		}
	}
	vs := distinctVertices(r)
	if len(vs) < 3 {
		return fmt.Errorf("%d distinct vertices, need at least 3", len(vs))
	}
	if i, j, ok := selfIntersection(vs); ok {
		return fmt.Errorf("edges %d and %d intersect", i, j)
	}
	return nil
}

// distinctVertices drops consecutive duplicates and the closing vertex, so
// the result describes the ring as an open cycle.
func distinctVertices(r orb.Ring) []orb.Point {
	out := make([]orb.Point, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// selfIntersection reports the first pair of non-adjacent edges of the cycle
// vs that touch or cross. Edge k runs from vs[k] to vs[(k+1)%n].
func selfIntersection(vs []orb.Point) (int, int, bool) {
	n := len(vs)
	for i := 0; i < n; i++ {
		a1, a2 := vs[i], vs[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				// Adjacent edges share a vertex. They only conflict when
				// they fold back over each other.
				if collinearOverlap(vs, i, j) {
					return i, j, true
				}
				continue
			}
			b1, b2 := vs[j], vs[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func collinearOverlap(vs []orb.Point, i, j int) bool {
	n := len(vs)
	a1, a2 := vs[i], vs[(i+1)%n]
	b1, b2 := vs[j], vs[(j+1)%n]
	if cross(a1, a2, b1) != 0 || cross(a1, a2, b2) != 0 {
		return false
	}
	// Shared vertex s, far ends p and q. Overlap means p and q lie on the
	// same side of s.
	var s, p, q orb.Point
	switch {
	case a2 == b1:
		s, p, q = a2, a1, b2
	case a1 == b2:
		s, p, q = a1, a2, b1
	default:
		return false
	}
	return (p[0]-s[0])*(q[0]-s[0])+(p[1]-s[1])*(q[1]-s[1]) > 0
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && withinBox(q1, q2, p1):
		return true
	case d2 == 0 && withinBox(q1, q2, p2):
		return true
	case d3 == 0 && withinBox(p1, p2, q1):
		return true
	case d4 == 0 && withinBox(p1, p2, q2):
		return true
	}
	return false
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func withinBox(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
