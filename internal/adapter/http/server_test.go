package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/aed-placement/internal/adapter/http"
	"github.com/couchcryptid/aed-placement/internal/adapter/sqlite"
	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockResults struct {
	result *domain.Result
}

func (m *mockResults) Latest() *domain.Result { return m.result }

type mockHistory struct {
	runs     []sqlite.RunRecord
	recs     map[string][]domain.Recommendation
	err      error
	gotLimit int
}

func (m *mockHistory) Runs(_ context.Context, limit int) ([]sqlite.RunRecord, error) {
	m.gotLimit = limit
	return m.runs, m.err
}

func (m *mockHistory) Recommendations(_ context.Context, runID string) ([]domain.Recommendation, error) {
	if m.err != nil {
		return nil, m.err
	}
	recs, ok := m.recs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sqlite.ErrRunNotFound, runID)
	}
	return recs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResult() *domain.Result {
	nearest := 120.0
	return &domain.Result{
		RunID:       "run-20250301T003005Z",
		GeneratedAt: time.Date(2025, 3, 1, 0, 30, 5, 0, time.UTC),
		Recommendations: []domain.Recommendation{
			{ID: "rec-1", Rank: 1, CandidateRank: 1, Lat: 35.53, Lon: 139.70, Region: "Kawasaki-ku", Score: 900},
			{ID: "rec-2", Rank: 2, CandidateRank: 2, Lat: 35.54, Lon: 139.71, Region: "Kawasaki-ku", Score: 700},
			{ID: "rec-3", Rank: 3, CandidateRank: 5, Lat: 35.55, Lon: 139.72, Region: "Saiwai-ku", Score: 500},
		},
		Coverage: []domain.RegionCoverage{
			{Region: "Kawasaki-ku", GridPoints: 10, CoveredPoints: 5, CoverageRate: 0.5, Weight: 100, CoveredWeight: 50, UncoveredWeight: 50, NearestFacility: &nearest},
		},
		Summary:  domain.Summary{Regions: 2, RejectedRegions: 1, GridPoints: 10},
		Rejected: []domain.RegionError{{Region: "Broken-ku", Err: domain.ErrInvalidGeometry}},
	}
}

func newTestServer(readyErr error, result *domain.Result, history httpadapter.RunHistory) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockResults{result: result}, history, testLogger())
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil, nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("no completed run"), nil, nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no completed run", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRecommendations(t *testing.T) {
	srv := newTestServer(nil, sampleResult(), nil)

	rec := get(t, srv, "/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "run-20250301T003005Z", body["run_id"])
	assert.Len(t, body["recommendations"], 3)

	rec = get(t, srv, "/recommendations?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["recommendations"], 2)

	rec = get(t, srv, "/recommendations?limit=99")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["recommendations"], 3)

	rec = get(t, srv, "/recommendations?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendations_NoRunYet(t *testing.T) {
	rec := get(t, newTestServer(nil, nil, nil), "/recommendations")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecommendations_EmptyListIsArray(t *testing.T) {
	rec := get(t, newTestServer(nil, &domain.Result{RunID: "run-x"}, nil), "/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["recommendations"])
}

func TestCoverage(t *testing.T) {
	rec := get(t, newTestServer(nil, sampleResult(), nil), "/coverage")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	regions := body["regions"].([]any)
	require.Len(t, regions, 1)
	assert.InDelta(t, 120, regions[0].(map[string]any)["nearest_facility_m"], 0)

	rejected := body["rejected"].([]any)
	require.Len(t, rejected, 1)
	assert.Equal(t, "Broken-ku", rejected[0].(map[string]any)["region"])
	assert.InDelta(t, 1, body["summary"].(map[string]any)["rejected_regions"], 0)
}

func TestCoverage_NoRunYet(t *testing.T) {
	rec := get(t, newTestServer(nil, nil, nil), "/coverage")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRuns_HistoryDisabled(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/runs/run-1/recommendations").Code)
}

func TestRuns(t *testing.T) {
	history := &mockHistory{
		runs: []sqlite.RunRecord{{RunID: "run-2", Recommendations: 3}, {RunID: "run-1", Recommendations: 2}},
		recs: map[string][]domain.Recommendation{"run-1": sampleResult().Recommendations[:2]},
	}
	srv := newTestServer(nil, nil, history)

	rec := get(t, srv, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["runs"], 2)
	assert.Equal(t, 20, history.gotLimit)

	rec = get(t, srv, "/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, history.gotLimit)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/runs?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/runs?limit=100000").Code)

	rec = get(t, srv, "/runs/run-1/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Len(t, body["recommendations"], 2)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/runs/run-9/recommendations").Code)
}

func TestRunRecommendations_RunWithNoneIsEmptyList(t *testing.T) {
	history := &mockHistory{recs: map[string][]domain.Recommendation{"run-covered": {}}}
	srv := newTestServer(nil, nil, history)

	rec := get(t, srv, "/runs/run-covered/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["recommendations"])
}

func TestRuns_StoreError(t *testing.T) {
	srv := newTestServer(nil, nil, &mockHistory{err: errors.New("database is locked")})

	rec := get(t, srv, "/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}

func TestAllReady(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, httpadapter.AllReady(&mockReadiness{}, nil, &mockReadiness{}).CheckReadiness(ctx))
	assert.EqualError(t, httpadapter.AllReady(&mockReadiness{}, &mockReadiness{err: errors.New("db down")}).CheckReadiness(ctx), "db down")
	assert.Error(t, httpadapter.AllReady().CheckReadiness(ctx))
}
