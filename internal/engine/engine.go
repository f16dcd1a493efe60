// Package engine runs one placement computation: sample regions into a
// weighted grid, classify the grid against existing facilities, score the
// uncovered points and pick a spread-out ranked subset.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/aed-placement/internal/coverage"
	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/couchcryptid/aed-placement/internal/grid"
	"github.com/couchcryptid/aed-placement/internal/observability"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine is safe for concurrent Runs; it holds no per-run state.
type Engine struct {
	params  domain.Params
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// New validates params and returns an engine.
func New(params domain.Params, logger *slog.Logger, metrics *observability.Metrics) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  params,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/couchcryptid/aed-placement/internal/engine"),
	}, nil
}

// Params returns the configuration the engine was built with.
func (e *Engine) Params() domain.Params { return e.params }

// Run computes recommendations for regions given the installed facilities.
// Regions with bad geometry or weight are reported in Result.Rejected and
// do not fail the run. An error is returned for invalid facilities, a
// degenerate projection, or context cancellation.
func (e *Engine) Run(ctx context.Context, regions []domain.Region, facilities []domain.Facility) (*domain.Result, error) {
	for i, f := range facilities {
		if !finite(f.Lat) || !finite(f.Lon) {
			return nil, fmt.Errorf("%w: index %d (%v, %v)", domain.ErrInvalidFacility, i, f.Lat, f.Lon)
		}
	}

	generatedAt := domain.Now()
	result := &domain.Result{
		RunID:       domain.NewRunID(generatedAt),
		GeneratedAt: generatedAt,
		Params:      e.params,
	}

	// Sample.
	var (
		points   []domain.GridPoint
		rejected []domain.RegionError
	)
	err := e.stage(ctx, "sample", func(ctx context.Context, span trace.Span) error {
		sampler := grid.Sampler{SpacingMeters: e.params.GridSpacingMeters, Workers: e.params.Workers}
		var err error
		points, rejected, err = sampler.Sample(ctx, regions)
		span.SetAttributes(
			attribute.Int("regions", len(regions)),
			attribute.Int("rejected", len(rejected)),
			attribute.Int("grid_points", len(points)),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Rejected = rejected
	for _, r := range rejected {
		e.logger.Warn("region rejected", "region", r.Region, "error", r.Err)
	}
	e.metrics.RegionsRejected.Add(float64(len(rejected)))
	e.metrics.GridPoints.Set(float64(len(points)))

	if len(points) == 0 {
		result.Summary = coverage.Summarize(nil, len(rejected), len(facilities), 0)
		e.metrics.CoveredPoints.Set(0)
		e.metrics.UncoveredWeight.Set(0)
		e.metrics.Recommendations.Set(0)
		e.logger.Warn("no grid points sampled", "regions", len(regions), "rejected", len(rejected))
		return result, nil
	}

	projection, err := geo.NewProjection(referenceLatitude(regions, points))
	if err != nil {
		return nil, err
	}

	// Classify.
	var covered []bool
	var nearest []float64
	err = e.stage(ctx, "classify", func(_ context.Context, span trace.Span) error {
		c := coverage.NewClassifier(facilities, projection, e.params.Workers)
		covered = c.Classify(points, e.params.CoverageRadiusMeters)
		nearest = c.NearestDistances(points)
		span.SetAttributes(attribute.Int("facilities", len(facilities)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Coverage = coverage.Report(regions, points, covered, nearest)

	// Score.
	var candidates []domain.Candidate
	err = e.stage(ctx, "score", func(_ context.Context, span trace.Span) error {
		s := coverage.Scorer{
			Projection: projection,
			Radius:     e.params.CoverageRadiusMeters,
			Workers:    e.params.Workers,
		}
		candidates = s.Score(points, covered, regions)
		span.SetAttributes(attribute.Int("candidates", len(candidates)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deduplicate.
	err = e.stage(ctx, "dedupe", func(_ context.Context, span trace.Span) error {
		d := coverage.Deduplicator{
			Projection:      projection,
			ExclusionRadius: e.params.ExclusionRadiusMeters,
			Target:          e.params.TargetCount,
		}
		result.Recommendations = d.Deduplicate(candidates)
		span.SetAttributes(attribute.Int("recommendations", len(result.Recommendations)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Summary = coverage.Summarize(result.Coverage, len(rejected), len(facilities), len(candidates))
	e.metrics.CoveredPoints.Set(float64(result.Summary.CoveredPoints))
	e.metrics.UncoveredWeight.Set(result.Summary.UncoveredWeight)
	e.metrics.Recommendations.Set(float64(len(result.Recommendations)))

	e.logger.Info("placement computed",
		"run_id", result.RunID,
		"grid_points", result.Summary.GridPoints,
		"covered_points", result.Summary.CoveredPoints,
		"candidates", len(candidates),
		"recommendations", len(result.Recommendations),
		"reference_lat", projection.ReferenceLatitude(),
	)
	return result, nil
}

// stage runs fn inside a span, records its duration, and checks for
// cancellation before starting.
func (e *Engine) stage(ctx context.Context, name string, fn func(context.Context, trace.Span) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := e.tracer.Start(ctx, "engine."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx, span)
	elapsed := time.Since(start)

	e.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	e.logger.Debug("stage complete", "stage", name, "duration", elapsed)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// referenceLatitude is the vertical midpoint of the combined bounding box of
// the regions that produced grid points.
func referenceLatitude(regions []domain.Region, points []domain.GridPoint) float64 {
	var (
		b     orb.Bound
		found bool
		last  = -1
	)
	for _, p := range points {
		if p.RegionIndex == last {
			continue
		}
		last = p.RegionIndex
		rb := regions[p.RegionIndex].Boundary.Bound()
		if !found {
			b, found = rb, true
			continue
		}
		b = b.Union(rb)
	}
	if !found {
		return math.NaN()
	}
	return (b.Min[1] + b.Max[1]) / 2
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
