// Package geojson loads administrative regions from a GeoJSON
// FeatureCollection of Polygon and MultiPolygon features.
package geojson

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature property names understood by the loader.
const (
	PropName             = "name"
	PropPopulationWeight = "population_weight"
	PropAgeBands         = "age_bands"
)

// RegionLoader reads regions from a file. It implements pipeline.RegionSource.
type RegionLoader struct {
	path   string
	logger *slog.Logger
}

// NewRegionLoader creates a loader for the GeoJSON file at path.
func NewRegionLoader(path string, logger *slog.Logger) *RegionLoader {
	return &RegionLoader{path: path, logger: logger}
}

// LoadRegions reads and parses the file. Features that cannot become a
// region are returned as rejected and logged; they do not fail the load.
func (l *RegionLoader) LoadRegions(ctx context.Context) ([]domain.Region, []domain.RegionError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("read regions: %w", err)
	}
	c, err := ParseRegions(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	for _, name := range c.Unweighted {
		l.logger.Warn("region has no population, using weight 0", "region", name)
	}
	for _, r := range c.Rejected {
		l.logger.Warn("region feature rejected", "region", r.Region, "error", r.Err)
	}
	l.logger.Info("regions loaded", "path", l.path, "count", len(c.Regions), "rejected", len(c.Rejected))
	return c.Regions, c.Rejected, nil
}

// Collection is the outcome of parsing a FeatureCollection.
type Collection struct {
	Regions  []domain.Region
	Rejected []domain.RegionError
	// Unweighted names regions that carried neither weight property and
	// were given weight 0.
	Unweighted []string
}

// ParseRegions converts a FeatureCollection into regions, one per usable
// feature, in feature order. Only a document that is not a
// FeatureCollection is an error.
//
// A region's weight is the numeric population_weight property. Without
// one, an age_bands object mapping age band to head count is folded with
// domain.RiskWeightedPopulation. A feature with neither gets weight 0.
// Features with null or non-areal geometry, or a malformed weight property,
// end up in Rejected. Geometry is otherwise passed through as-is;
// validation happens during sampling.
func ParseRegions(data []byte) (*Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	c := &Collection{Regions: make([]domain.Region, 0, len(fc.Features))}
	for i, f := range fc.Features {
		r, weighted, err := parseFeature(i, f)
		if err != nil {
			c.Rejected = append(c.Rejected, domain.RegionError{Region: r.Name, Err: err})
			continue
		}
		if !weighted {
			c.Unweighted = append(c.Unweighted, r.Name)
		}
		c.Regions = append(c.Regions, r)
	}
	return c, nil
}

func parseFeature(i int, f *geojson.Feature) (domain.Region, bool, error) {
	r := domain.Region{Name: featureName(i, f)}

	switch g := f.Geometry.(type) {
	case orb.Polygon:
		r.Boundary = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		r.Boundary = g
	case nil:
		return r, false, fmt.Errorf("feature %d: %w: missing geometry", i, domain.ErrInvalidGeometry)
	default:
		return r, false, fmt.Errorf("feature %d: %w: unsupported geometry %s", i, domain.ErrInvalidGeometry, g.GeoJSONType())
	}

	weight, weighted, err := featureWeight(f.Properties)
	if err != nil {
		return r, false, fmt.Errorf("feature %d: %w: %w", i, domain.ErrInvalidWeight, err)
	}
	r.Weight = weight
	return r, weighted, nil
}

// featureName prefers the name property, then the feature id.
func featureName(i int, f *geojson.Feature) string {
	if s, ok := f.Properties[PropName].(string); ok && s != "" {
		return s
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return fmt.Sprintf("feature-%d", i)
}

// featureWeight reports false when neither weight property is present.
func featureWeight(props geojson.Properties) (float64, bool, error) {
	if v, ok := props[PropPopulationWeight]; ok && v != nil {
		w, ok := v.(float64)
		if !ok {
			return 0, true, fmt.Errorf("%s is %T, want number", PropPopulationWeight, v)
		}
		return w, true, nil
	}

	raw, ok := props[PropAgeBands]
	if !ok || raw == nil {
		return 0, false, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return 0, true, fmt.Errorf("%s is %T, want object", PropAgeBands, raw)
	}
	bands := make(map[string]float64, len(obj))
	for band, v := range obj {
		n, ok := v.(float64)
		if !ok {
			return 0, true, fmt.Errorf("%s[%q] is %T, want number", PropAgeBands, band, v)
		}
		bands[band] = n
	}
	w, err := domain.RiskWeightedPopulation(bands)
	return w, true, err
}
