// Package geo holds the distance and projection math shared by the grid,
// index and coverage packages.
//
// Two distance models are used on purpose. Haversine is the reference
// geodesic distance. The planar projection is a cheap local approximation
// that the k-d tree indexes are built over; it is only valid across the
// extent of one municipality around its reference latitude.
package geo

import (
	"fmt"
	"math"

	"github.com/couchcryptid/aed-placement/internal/domain"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by Haversine.
	EarthRadiusMeters = 6371000.0

	// MetersPerDegree is the flat-earth length of one degree of latitude.
	MetersPerDegree = 111000.0

	// minCosLatitude bounds how close to a pole a projection may be anchored
	// (about 89.4 degrees).
	minCosLatitude = 0.01
)

// Haversine returns the great-circle distance in meters between two points
// given in degrees. NaN inputs yield NaN.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DegreeSpacing converts a metric step into latitude and longitude steps at
// the given latitude using the equirectangular approximation.
func DegreeSpacing(meters, atLatitude float64) (latStep, lonStep float64, err error) {
	cosLat, err := cosLatitude(atLatitude)
	if err != nil {
		return 0, 0, err
	}
	return meters / MetersPerDegree, meters / (MetersPerDegree * cosLat), nil
}

func cosLatitude(lat float64) (float64, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, fmt.Errorf("%w: latitude %v", domain.ErrDegenerateProjection, lat)
	}
	c := math.Cos(lat * math.Pi / 180)
	if c < minCosLatitude {
		return 0, fmt.Errorf("%w: latitude %.4f is too close to a pole", domain.ErrDegenerateProjection, lat)
	}
	return c, nil
}
