package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding attaches an address to a recommendation. If geocoder is
// nil or the lookup fails, the recommendation is returned unchanged
// (graceful degradation).
func EnrichWithGeocoding(ctx context.Context, rec Recommendation, geocoder ReverseGeocoder, logger *slog.Logger) Recommendation {
	if geocoder == nil {
		return rec
	}

	result, err := geocoder.ReverseGeocode(ctx, rec.Lat, rec.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"rank", rec.Rank,
			"lat", rec.Lat,
			"lon", rec.Lon,
			"error", err,
		)
		return rec
	}
	if result.FormattedAddress == "" {
		return rec
	}

	rec.FormattedAddress = result.FormattedAddress
	rec.PlaceName = result.PlaceName
	rec.GeoConfidence = result.Confidence
	return rec
}
