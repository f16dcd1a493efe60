package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/aed-placement/internal/domain"
)

// Format selects the file layout written by FileSink.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
)

var csvHeader = []string{
	"rank", "candidate_rank", "id", "lat", "lon", "region", "score",
	"formatted_address", "place_name",
}

// FileSink writes the ranked recommendations of each run to a local file,
// replacing the previous one. It implements pipeline.ResultSink.
type FileSink struct {
	path   string
	format Format
	logger *slog.Logger
}

// NewFileSink creates a sink writing to path in the given format.
func NewFileSink(path string, format Format, logger *slog.Logger) *FileSink {
	return &FileSink{path: path, format: format, logger: logger}
}

func (s *FileSink) Name() string { return "file" }

// LoadResult writes to a temporary file in the target directory and renames
// it into place, so readers never observe a half-written file.
func (s *FileSink) LoadResult(ctx context.Context, result *domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	switch s.format {
	case FormatJSON:
		err = WriteJSON(tmp, result)
	default:
		err = WriteCSV(tmp, result.Recommendations)
	}
	if err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	s.logger.Info("recommendations written", "path", s.path, "count", len(result.Recommendations))
	return nil
}

// WriteCSV writes one row per recommendation, in rank order, after a header.
func WriteCSV(w io.Writer, recs []domain.Recommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.Itoa(r.Rank),
			strconv.Itoa(r.CandidateRank),
			r.ID,
			strconv.FormatFloat(r.Lat, 'f', 6, 64),
			strconv.FormatFloat(r.Lon, 'f', 6, 64),
			r.Region,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			r.FormattedAddress,
			r.PlaceName,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the whole run result, indented.
func WriteJSON(w io.Writer, result *domain.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// ReadRecommendations parses a file produced by WriteCSV.
func ReadRecommendations(r io.Reader) ([]domain.Recommendation, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	recs := make([]domain.Recommendation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("row %d: %d fields, want %d", i+2, len(row), len(csvHeader))
		}
		var (
			rec  domain.Recommendation
			errs [5]error
		)
		rec.Rank, errs[0] = strconv.Atoi(row[0])
		rec.CandidateRank, errs[1] = strconv.Atoi(row[1])
		rec.ID = row[2]
		rec.Lat, errs[2] = strconv.ParseFloat(row[3], 64)
		rec.Lon, errs[3] = strconv.ParseFloat(row[4], 64)
		rec.Region = row[5]
		rec.Score, errs[4] = strconv.ParseFloat(row[6], 64)
		rec.FormattedAddress = row[7]
		rec.PlaceName = row[8]
		for _, err := range errs {
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
