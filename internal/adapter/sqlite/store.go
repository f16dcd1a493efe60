// Package sqlite keeps a history of placement runs in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aed-placement/internal/domain"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	generated_at     TEXT NOT NULL,
	params           TEXT NOT NULL,
	summary          TEXT NOT NULL,
	recommendations  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS recommendations (
	run_id            TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	rank              INTEGER NOT NULL,
	candidate_rank    INTEGER NOT NULL,
	id                TEXT NOT NULL,
	lat               REAL NOT NULL,
	lon               REAL NOT NULL,
	region            TEXT NOT NULL,
	score             REAL NOT NULL,
	formatted_address TEXT NOT NULL DEFAULT '',
	place_name        TEXT NOT NULL DEFAULT '',
	geo_confidence    REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, rank)
);
CREATE TABLE IF NOT EXISTS region_coverage (
	run_id             TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	ordinal            INTEGER NOT NULL,
	region             TEXT NOT NULL,
	grid_points        INTEGER NOT NULL,
	covered_points     INTEGER NOT NULL,
	coverage_rate      REAL NOT NULL,
	weight             REAL NOT NULL,
	covered_weight     REAL NOT NULL,
	uncovered_weight   REAL NOT NULL,
	nearest_facility_m REAL,
	PRIMARY KEY (run_id, ordinal)
);
`

// ErrRunNotFound is returned for a run id that is not in the history.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the run history.
type RunRecord struct {
	RunID           string         `json:"run_id"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Params          domain.Params  `json:"params"`
	Summary         domain.Summary `json:"summary"`
	Recommendations int            `json:"recommendations"`
}

// Store persists run results. It implements pipeline.ResultSink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps
	// ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("run history opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Name() string { return "sqlite" }

// LoadResult records a run. Storing the same run ID again replaces it.
func (s *Store) LoadResult(ctx context.Context, result *domain.Result) error {
	params, err := json.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	return s.transaction(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"recommendations", "region_coverage", "runs"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, result.RunID); err != nil {
				return fmt.Errorf("replace run: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (run_id, generated_at, params, summary, recommendations) VALUES (?, ?, ?, ?, ?)`,
			result.RunID, result.GeneratedAt.UTC().Format(time.RFC3339Nano), string(params), string(summary),
			len(result.Recommendations),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		recStmt, err := tx.PrepareContext(ctx, `INSERT INTO recommendations
			(run_id, rank, candidate_rank, id, lat, lon, region, score, formatted_address, place_name, geo_confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer recStmt.Close()
		for _, r := range result.Recommendations {
			if _, err := recStmt.ExecContext(ctx, result.RunID, r.Rank, r.CandidateRank, r.ID,
				r.Lat, r.Lon, r.Region, r.Score, r.FormattedAddress, r.PlaceName, r.GeoConfidence); err != nil {
				return fmt.Errorf("insert recommendation %d: %w", r.Rank, err)
			}
		}

		covStmt, err := tx.PrepareContext(ctx, `INSERT INTO region_coverage
			(run_id, ordinal, region, grid_points, covered_points, coverage_rate, weight,
			 covered_weight, uncovered_weight, nearest_facility_m)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer covStmt.Close()
		for i, c := range result.Coverage {
			var nearest sql.NullFloat64
			if c.NearestFacility != nil {
				nearest = sql.NullFloat64{Float64: *c.NearestFacility, Valid: true}
			}
			if _, err := covStmt.ExecContext(ctx, result.RunID, i, c.Region, c.GridPoints, c.CoveredPoints,
				c.CoverageRate, c.Weight, c.CoveredWeight, c.UncoveredWeight, nearest); err != nil {
				return fmt.Errorf("insert coverage %q: %w", c.Region, err)
			}
		}
		return nil
	})
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, generated_at, params, summary, recommendations
		 FROM runs ORDER BY generated_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec             RunRecord
			at              string
			params, summary string
		)
		if err := rows.Scan(&rec.RunID, &at, &params, &summary, &rec.Recommendations); err != nil {
			return nil, err
		}
		if rec.GeneratedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("run %s: generated_at: %w", rec.RunID, err)
		}
		if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
			return nil, fmt.Errorf("run %s: params: %w", rec.RunID, err)
		}
		if err := json.Unmarshal([]byte(summary), &rec.Summary); err != nil {
			return nil, fmt.Errorf("run %s: summary: %w", rec.RunID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Recommendations returns the stored recommendations of a run in rank order.
// A run that produced none yields an empty slice; an unknown run yields
// ErrRunNotFound.
func (s *Store) Recommendations(ctx context.Context, runID string) ([]domain.Recommendation, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("look up run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, candidate_rank, id, lat, lon, region, score, formatted_address, place_name, geo_confidence
		 FROM recommendations WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	out := []domain.Recommendation{}
	for rows.Next() {
		var r domain.Recommendation
		if err := rows.Scan(&r.Rank, &r.CandidateRank, &r.ID, &r.Lat, &r.Lon, &r.Region, &r.Score,
			&r.FormattedAddress, &r.PlaceName, &r.GeoConfidence); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
