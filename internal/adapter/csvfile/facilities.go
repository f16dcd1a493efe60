// Package csvfile reads facility locations from CSV and writes
// recommendation files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/aed-placement/internal/domain"
)

var (
	latColumns = []string{"lat", "latitude", "緯度"}
	lonColumns = []string{"lon", "lng", "longitude", "経度"}
)

// FacilityLoader reads installed AEDs from a CSV file with a header row.
// It implements pipeline.FacilitySource.
type FacilityLoader struct {
	path   string
	logger *slog.Logger
}

// NewFacilityLoader creates a loader for the CSV file at path.
func NewFacilityLoader(path string, logger *slog.Logger) *FacilityLoader {
	return &FacilityLoader{path: path, logger: logger}
}

// LoadFacilities reads the file. Rows whose coordinates are blank or do not
// parse are skipped and counted in the log.
func (l *FacilityLoader) LoadFacilities(ctx context.Context) ([]domain.Facility, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open facilities: %w", err)
	}
	defer f.Close()

	facilities, skipped, err := ReadFacilities(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}
	if skipped > 0 {
		l.logger.Warn("facility rows skipped", "path", l.path, "skipped", skipped)
	}
	l.logger.Info("facilities loaded", "path", l.path, "count", len(facilities))
	return facilities, nil
}

// ReadFacilities parses CSV with a header naming latitude and longitude
// columns (lat/latitude and lon/lng/longitude, case-insensitive). It returns
// the parsed facilities and the number of rows skipped.
func ReadFacilities(r io.Reader) ([]domain.Facility, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, errors.New("empty file")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	latIdx := columnIndex(header, latColumns)
	lonIdx := columnIndex(header, lonColumns)
	if latIdx < 0 || lonIdx < 0 {
		return nil, 0, fmt.Errorf("header %v: need latitude and longitude columns", header)
	}

	var (
		facilities []domain.Facility
		skipped    int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		lat, okLat := parseCoord(rec, latIdx)
		lon, okLon := parseCoord(rec, lonIdx)
		if !okLat || !okLon {
			skipped++
			continue
		}
		facilities = append(facilities, domain.Facility{Lat: lat, Lon: lon})
	}
	return facilities, skipped, nil
}

func columnIndex(header, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func parseCoord(rec []string, idx int) (float64, bool) {
	if idx >= len(rec) {
		return 0, false
	}
	s := strings.TrimSpace(rec[idx])
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
