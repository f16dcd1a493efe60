package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/aed-placement/internal/domain"
)

// Enricher attaches reverse-geocoded addresses to recommendations.
type Enricher struct {
	geocoder domain.ReverseGeocoder
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. Pass a nil geocoder to disable
// enrichment.
func NewEnricher(geocoder domain.ReverseGeocoder, logger *slog.Logger) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Enrich returns a copy of result with addresses filled in where the
// geocoder has one. The input is not modified.
func (e *Enricher) Enrich(ctx context.Context, result *domain.Result) *domain.Result {
	if e.geocoder == nil || len(result.Recommendations) == 0 {
		return result
	}
	out := *result
	out.Recommendations = make([]domain.Recommendation, len(result.Recommendations))
	for i, rec := range result.Recommendations {
		if ctx.Err() != nil {
			out.Recommendations[i] = rec
			continue
		}
		out.Recommendations[i] = domain.EnrichWithGeocoding(ctx, rec, e.geocoder, e.logger)
	}
	return &out
}
