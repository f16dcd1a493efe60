package geo

// Projection maps latitude/longitude to a local planar frame in meters.
// Euclidean distance in that frame approximates geodesic distance near the
// reference latitude.
type Projection struct {
	refLat       float64
	metersPerLon float64
}

// NewProjection anchors a projection at refLat. It fails with
// domain.ErrDegenerateProjection near the poles.
func NewProjection(refLat float64) (Projection, error) {
	c, err := cosLatitude(refLat)
	if err != nil {
		return Projection{}, err
	}
	return Projection{refLat: refLat, metersPerLon: MetersPerDegree * c}, nil
}

// ReferenceLatitude returns the latitude the projection is anchored at.
func (p Projection) ReferenceLatitude() float64 { return p.refLat }

// Project returns planar coordinates in meters: x grows east, y grows north.
func (p Projection) Project(lat, lon float64) (x, y float64) {
	return lon * p.metersPerLon, lat * MetersPerDegree
}
