package grid

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/couchcryptid/aed-placement/internal/domain"
)

// Sampler rasterizes and weights regions on a bounded pool of goroutines.
type Sampler struct {
	SpacingMeters float64
	Workers       int
}

type sampleResult struct {
	points []domain.GridPoint
	err    error
}

// Sample returns the grid points of every valid region and the regions that
// were left out. Points are ordered by region input order, then lattice
// order, whatever the worker count. The only error returned is the context's.
func (s Sampler) Sample(ctx context.Context, regions []domain.Region) ([]domain.GridPoint, []domain.RegionError, error) {
	results := make([]sampleResult, len(regions))

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(regions) {
		workers = len(regions)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				pts, err := s.sampleRegion(regions[i], i)
				results[i] = sampleResult{points: pts, err: err}
			}
		}()
	}

	var ctxErr error
feed:
	for i := range regions {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if ctxErr != nil {
		return nil, nil, ctxErr
	}

	var (
		points   []domain.GridPoint
		rejected []domain.RegionError
	)
	for i, r := range results {
		if r.err != nil {
			rejected = append(rejected, domain.RegionError{Region: regions[i].Name, Err: r.err})
			continue
		}
		points = append(points, r.points...)
	}
	return points, rejected, nil
}

func (s Sampler) sampleRegion(region domain.Region, index int) ([]domain.GridPoint, error) {
	if math.IsNaN(region.Weight) || math.IsInf(region.Weight, 0) || region.Weight < 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWeight, region.Weight)
	}
	if err := Validate(region.Boundary); err != nil {
		return nil, err
	}
	pts, err := Rasterize(region.Boundary, s.SpacingMeters)
	if err != nil {
		return nil, err
	}
	return Distribute(region, index, pts), nil
}
