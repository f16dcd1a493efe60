package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/aed-placement/internal/adapter/sqlite"
	"github.com/couchcryptid/aed-placement/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// ResultProvider returns the most recent run result, or nil before the
// first run has finished.
type ResultProvider interface {
	Latest() *domain.Result
}

// RunHistory is the read side of the run-history store. Recommendations
// returns an error wrapping sqlite.ErrRunNotFound for an unknown run.
type RunHistory interface {
	Runs(ctx context.Context, limit int) ([]sqlite.RunRecord, error)
	Recommendations(ctx context.Context, runID string) ([]domain.Recommendation, error)
}

// Server exposes health, readiness, metrics and result endpoints.
type Server struct {
	httpServer *http.Server
	results    ResultProvider
	history    RunHistory
	logger     *slog.Logger
}

// NewServer creates an HTTP server. history may be nil, in which case the
// /runs routes answer 404.
func NewServer(addr string, ready sharedobs.ReadinessChecker, results ResultProvider, history RunHistory, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		history: history,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /recommendations", s.handleRecommendations)
	mux.HandleFunc("GET /coverage", s.handleCoverage)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /runs/{id}/recommendations", s.handleRunRecommendations)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type recommendationsResponse struct {
	RunID           string                  `json:"run_id"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	res := s.results.Latest()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no completed run yet")
		return
	}
	recs := res.Recommendations
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(recs) {
			recs = recs[:n]
		}
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, recommendationsResponse{
		RunID:           res.RunID,
		GeneratedAt:     res.GeneratedAt,
		Recommendations: recs,
	})
}

type coverageResponse struct {
	RunID    string                  `json:"run_id"`
	Summary  domain.Summary          `json:"summary"`
	Regions  []domain.RegionCoverage `json:"regions"`
	Rejected []domain.RegionError    `json:"rejected"`
}

func (s *Server) handleCoverage(w http.ResponseWriter, _ *http.Request) {
	res := s.results.Latest()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no completed run yet")
		return
	}
	resp := coverageResponse{
		RunID:    res.RunID,
		Summary:  res.Summary,
		Regions:  res.Coverage,
		Rejected: res.Rejected,
	}
	if resp.Regions == nil {
		resp.Regions = []domain.RegionCoverage{}
	}
	if resp.Rejected == nil {
		resp.Rejected = []domain.RegionError{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxRunsLimit))
			return
		}
		limit = n
	}
	runs, err := s.history.Runs(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []sqlite.RunRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRunRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	runID := r.PathValue("id")
	recs, err := s.history.Recommendations(r.Context(), runID)
	if errors.Is(err, sqlite.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "unknown run "+runID)
		return
	}
	if err != nil {
		s.internalError(w, "load run recommendations", err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"run_id": runID, "recommendations": recs})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("http handler failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}

// AllReady combines readiness checks; the first failure wins.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readinessGroup(checkers)
}

type readinessGroup []sharedobs.ReadinessChecker

func (g readinessGroup) CheckReadiness(ctx context.Context) error {
	for _, c := range g {
		if c == nil {
			continue
		}
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	if len(g) == 0 {
		return errors.New("no readiness checks configured")
	}
	return nil
}
