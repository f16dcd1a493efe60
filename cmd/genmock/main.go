// Command genmock writes a synthetic municipality fixture: a GeoJSON file of
// rectangular wards with age-band populations, a CSV of installed AEDs, and
// optionally the engine's result for that input. The same seed always yields
// the same files.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -regions-out data/mock/wards.geojson \
//	  -facilities-out data/mock/aed.csv \
//	  -expected-out data/mock/expected_result.json
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/aed-placement/internal/adapter/csvfile"
	"github.com/couchcryptid/aed-placement/internal/adapter/geojson"
	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/engine"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/couchcryptid/aed-placement/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

// generatedAt is the fixed run time stamped into the expected result.
var generatedAt = time.Date(2025, time.March, 1, 0, 30, 5, 0, time.UTC)

type options struct {
	seed          uint64
	rows, cols    int
	wardMeters    float64
	facilities    int
	centerLat     float64
	centerLon     float64
	regionsOut    string
	facilitiesOut string
	expectedOut   string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.Uint64Var(&o.seed, "seed", 42, "random seed")
	flag.IntVar(&o.rows, "rows", 3, "ward rows")
	flag.IntVar(&o.cols, "cols", 4, "ward columns")
	flag.Float64Var(&o.wardMeters, "ward-m", 1500, "ward edge length in meters")
	flag.IntVar(&o.facilities, "facilities", 25, "number of installed AEDs")
	flag.Float64Var(&o.centerLat, "center-lat", 35.5308, "fixture center latitude")
	flag.Float64Var(&o.centerLon, "center-lon", 139.7029, "fixture center longitude")
	flag.StringVar(&o.regionsOut, "regions-out", "", "output path for the wards GeoJSON")
	flag.StringVar(&o.facilitiesOut, "facilities-out", "", "output path for the facilities CSV")
	flag.StringVar(&o.expectedOut, "expected-out", "", "optional output path for the expected engine result")
	flag.Parse()

	if o.regionsOut == "" || o.facilitiesOut == "" {
		flag.Usage()
		return errors.New("missing required flags: -regions-out, -facilities-out")
	}
	if o.rows < 1 || o.cols < 1 || o.wardMeters <= 0 || o.facilities < 0 {
		return errors.New("rows, cols and ward-m must be positive; facilities must not be negative")
	}

	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))

	fc, bound, err := buildWards(rng, o)
	if err != nil {
		return err
	}
	facilities := scatterFacilities(rng, bound, o.facilities)

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode wards: %w", err)
	}
	if err := writeFile(o.regionsOut, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	}); err != nil {
		return fmt.Errorf("writing wards: %w", err)
	}
	log.Printf("wrote %d wards: %s", len(fc.Features), o.regionsOut)

	if err := writeFile(o.facilitiesOut, func(w io.Writer) error {
		return writeFacilities(w, facilities)
	}); err != nil {
		return fmt.Errorf("writing facilities: %w", err)
	}
	log.Printf("wrote %d facilities: %s", len(facilities), o.facilitiesOut)

	if o.expectedOut == "" {
		return nil
	}
	result, err := expectedResult(data, facilities)
	if err != nil {
		return err
	}
	if err := writeFile(o.expectedOut, func(w io.Writer) error {
		return csvfile.WriteJSON(w, result)
	}); err != nil {
		return fmt.Errorf("writing expected result: %w", err)
	}
	log.Printf("wrote expected result: %s", o.expectedOut)

	printStats(result)
	return nil
}

// buildWards lays out rows x cols square wards centered on the fixture
// center. The first ward gets a park carved out as a hole.
func buildWards(rng *rand.Rand, o options) (*orbjson.FeatureCollection, orb.Bound, error) {
	latStep, lonStep, err := geo.DegreeSpacing(o.wardMeters, o.centerLat)
	if err != nil {
		return nil, orb.Bound{}, err
	}
	minLat := o.centerLat - latStep*float64(o.rows)/2
	minLon := o.centerLon - lonStep*float64(o.cols)/2

	fc := orbjson.NewFeatureCollection()
	for r := 0; r < o.rows; r++ {
		for c := 0; c < o.cols; c++ {
			lo := orb.Point{minLon + float64(c)*lonStep, minLat + float64(r)*latStep}
			hi := orb.Point{minLon + float64(c+1)*lonStep, minLat + float64(r+1)*latStep}
			poly := orb.Polygon{orb.Bound{Min: lo, Max: hi}.ToRing()}
			if r == 0 && c == 0 {
				// Park in the middle fifth of the ward.
				poly = append(poly, parkRing(lo, hi))
			}

			f := orbjson.NewFeature(poly)
			f.Properties[geojson.PropName] = fmt.Sprintf("Ward %d-%d", r+1, c+1)
			f.Properties[geojson.PropAgeBands] = ageBands(rng)
			fc.Append(f)
		}
	}

	bound := orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{minLon + float64(o.cols)*lonStep, minLat + float64(o.rows)*latStep},
	}
	return fc, bound, nil
}

func parkRing(lo, hi orb.Point) orb.Ring {
	w, h := hi[0]-lo[0], hi[1]-lo[1]
	// Holes wind opposite to the outer ring.
	ring := orb.Bound{
		Min: orb.Point{lo[0] + 0.4*w, lo[1] + 0.4*h},
		Max: orb.Point{lo[0] + 0.6*w, lo[1] + 0.6*h},
	}.ToRing()
	ring.Reverse()
	return ring
}

// ageBands draws a ward population skewed by a random share of elderly
// residents.
func ageBands(rng *rand.Rand) map[string]any {
	bands := make([]string, 0, len(domain.RiskWeights))
	for b := range domain.RiskWeights {
		bands = append(bands, b)
	}
	sort.Strings(bands)

	elderly := 0.5 + rng.Float64()
	out := make(map[string]any, len(bands))
	for _, b := range bands {
		n := 200 + rng.IntN(800)
		if domain.RiskWeights[b] >= 4 {
			n = int(float64(n) * elderly)
		}
		out[b] = float64(n)
	}
	return out
}

func scatterFacilities(rng *rand.Rand, b orb.Bound, n int) []domain.Facility {
	out := make([]domain.Facility, n)
	for i := range out {
		out[i] = domain.Facility{
			Lat: b.Min[1] + rng.Float64()*(b.Max[1]-b.Min[1]),
			Lon: b.Min[0] + rng.Float64()*(b.Max[0]-b.Min[0]),
		}
	}
	return out
}

func writeFacilities(w io.Writer, facilities []domain.Facility) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "lat", "lon"}); err != nil {
		return err
	}
	for i, f := range facilities {
		row := []string{
			fmt.Sprintf("AED %03d", i+1),
			strconv.FormatFloat(f.Lat, 'f', 6, 64),
			strconv.FormatFloat(f.Lon, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// expectedResult runs the real engine on the fixture, reading the wards back
// through the region loader so the fixture matches what the service sees.
func expectedResult(wards []byte, facilities []domain.Facility) (*domain.Result, error) {
	domain.SetClock(clockwork.NewFakeClockAt(generatedAt))
	defer domain.SetClock(nil)

	parsed, err := geojson.ParseRegions(wards)
	if err != nil {
		return nil, fmt.Errorf("parse generated wards: %w", err)
	}
	if len(parsed.Rejected) > 0 {
		return nil, fmt.Errorf("generated ward rejected: %w", parsed.Rejected[0])
	}
	regions := parsed.Regions
	// Round-trip facilities through the CSV form as well.
	for i := range facilities {
		facilities[i].Lat, _ = strconv.ParseFloat(strconv.FormatFloat(facilities[i].Lat, 'f', 6, 64), 64)
		facilities[i].Lon, _ = strconv.ParseFloat(strconv.FormatFloat(facilities[i].Lon, 'f', 6, 64), 64)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(domain.DefaultParams(), logger, observability.NewMetricsForTesting())
	if err != nil {
		return nil, err
	}
	return eng.Run(context.Background(), regions, facilities)
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printStats(res *domain.Result) {
	s := res.Summary
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Regions: %d (rejected %d)\n", s.Regions, s.RejectedRegions)
	fmt.Printf("Grid points: %d, covered: %d\n", s.GridPoints, s.CoveredPoints)
	fmt.Printf("Weight: total=%.1f covered=%.1f uncovered=%.1f\n", s.TotalWeight, s.CoveredWeight, s.UncoveredWeight)
	fmt.Printf("Candidates: %d, recommendations: %d\n", s.Candidates, len(res.Recommendations))
	for _, r := range res.Recommendations[:min(5, len(res.Recommendations))] {
		fmt.Printf("  #%d (cand %d) %.6f,%.6f %s score=%.2f\n", r.Rank, r.CandidateRank, r.Lat, r.Lon, r.Region, r.Score)
	}
}
