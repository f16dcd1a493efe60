package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// RegionSource supplies the administrative regions for a run. Entries that
// could not be turned into a region come back as rejected and are carried
// into the result rather than failing the run.
type RegionSource interface {
	LoadRegions(ctx context.Context) ([]domain.Region, []domain.RegionError, error)
}

// FacilitySource supplies the installed facilities for a run. Entries
// without coordinates must already be filtered out.
type FacilitySource interface {
	LoadFacilities(ctx context.Context) ([]domain.Facility, error)
}

// Planner computes a placement result from regions and facilities.
type Planner interface {
	Run(ctx context.Context, regions []domain.Region, facilities []domain.Facility) (*domain.Result, error)
}

// ResultSink writes a finished result to a destination.
type ResultSink interface {
	Name() string
	LoadResult(ctx context.Context, result *domain.Result) error
}

// Options tunes sink retries. Zero values take the defaults.
type Options struct {
	SinkMaxAttempts int           // default 3
	InitialBackoff  time.Duration // default 200ms
	MaxBackoff      time.Duration // default 5s
}

func (o Options) withDefaults() Options {
	if o.SinkMaxAttempts <= 0 {
		o.SinkMaxAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
	return o
}

// Pipeline orchestrates extract (regions, facilities), plan, enrich and load.
type Pipeline struct {
	regions    RegionSource
	facilities FacilitySource
	planner    Planner
	enricher   *Enricher
	sinks      []ResultSink
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options

	ready  atomic.Bool
	latest atomic.Pointer[domain.Result]
}

// New creates a Pipeline with the given stages and observability. enricher
// may be nil.
func New(rs RegionSource, fs FacilitySource, planner Planner, enricher *Enricher, sinks []ResultSink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		regions:    rs,
		facilities: fs,
		planner:    planner,
		enricher:   enricher,
		sinks:      sinks,
		logger:     logger,
		metrics:    metrics,
		opts:       opts.withDefaults(),
	}
}

// CheckReadiness returns nil once a run has produced a result.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no placement result computed yet")
	}
	return nil
}

// Latest returns the most recent result, or nil before the first run
// completes.
func (p *Pipeline) Latest() *domain.Result {
	return p.latest.Load()
}

// Run executes one extract-plan-enrich-load cycle. The result is kept for
// Latest even when a sink fails; sink failures are joined into the returned
// error.
func (p *Pipeline) Run(ctx context.Context) (*domain.Result, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	result, err := p.plan(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if p.enricher != nil {
		result = p.enricher.Enrich(ctx, result)
	}

	p.latest.Store(result)
	p.ready.Store(true)

	loadErr := p.load(ctx, result)

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if loadErr != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return result, loadErr
	}
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.logger.Info("pipeline run complete",
		"run_id", result.RunID,
		"recommendations", len(result.Recommendations),
		"duration", time.Since(start),
	)
	return result, nil
}

func (p *Pipeline) plan(ctx context.Context) (*domain.Result, error) {
	regions, rejected, err := p.regions.LoadRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}
	facilities, err := p.facilities.LoadFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load facilities: %w", err)
	}
	p.logger.Info("inputs loaded", "regions", len(regions), "rejected", len(rejected), "facilities", len(facilities))

	result, err := p.planner.Run(ctx, regions, facilities)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if len(rejected) > 0 {
		result.Rejected = append(slices.Clone(rejected), result.Rejected...)
		result.Summary.RejectedRegions += len(rejected)
		p.metrics.RegionsRejected.Add(float64(len(rejected)))
	}
	return result, nil
}

// load writes to every sink. A failing sink does not stop the others.
func (p *Pipeline) load(ctx context.Context, result *domain.Result) error {
	var errs []error
	for _, s := range p.sinks {
		if err := p.loadWithRetry(ctx, s, result); err != nil {
			p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			p.logger.Error("sink failed", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) loadWithRetry(ctx context.Context, s ResultSink, result *domain.Result) error {
	backoff := p.opts.InitialBackoff
	var err error
	for attempt := 1; attempt <= p.opts.SinkMaxAttempts; attempt++ {
		if err = s.LoadResult(ctx, result); err == nil {
			return nil
		}
		if attempt == p.opts.SinkMaxAttempts || ctx.Err() != nil {
			break
		}
		p.logger.Warn("sink write failed, retrying",
			"sink", s.Name(),
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, p.opts.MaxBackoff)
	}
	return err
}
