package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/config"
	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
	"github.com/JakeFAU/streamprice-crawler/internal/id/uuid"
	"github.com/JakeFAU/streamprice-crawler/internal/metrics"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
	"github.com/JakeFAU/streamprice-crawler/internal/regions"
	"github.com/JakeFAU/streamprice-crawler/internal/storage"
)

// SnapshotReader loads the latest archived snapshot.
type SnapshotReader interface {
	Latest(ctx context.Context) (crawler.Snapshot, error)
}

// RunStarter starts background scrape runs.
type RunStarter interface {
	Start(ctx context.Context, countries []string) (crawler.Run, error)
}

// Deps are the collaborators behind the handlers. Runner and Runs may be nil, in which case the
// scrape routes answer 503.
type Deps struct {
	Parser    crawler.PageParser
	Snapshots SnapshotReader
	Runner    RunStarter
	Runs      crawler.RunStore
	Clock     crawler.Clock
	// Ready reports downstream readiness for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the parser, converter and run pipeline.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}
	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		r.Use(bodyLimitMiddleware(cfg.Server.MaxBodyBytes))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/parse", s.parse)
		r.Post("/convert", s.convert)
		r.Get("/snapshots/latest", s.latestSnapshot)
		r.Post("/scrape", s.startScrape)
		r.Get("/runs/{run_id}", s.getRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type parseRequest struct {
	Country string `json:"country"`
	HTML    string `json:"html"`
}

type parseResponse struct {
	Country string               `json:"country"`
	Records []pricing.PlanRecord `json:"records"`
	Summary string               `json:"summary"`
}

func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cc := strings.ToLower(strings.TrimSpace(req.Country))
	if !validCountry(cc) {
		writeError(w, http.StatusBadRequest, "country must be a two-letter code")
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeError(w, http.StatusBadRequest, "html required")
		return
	}
	records, summary := s.deps.Parser.Parse(req.HTML, cc)
	if records == nil {
		records = []pricing.PlanRecord{}
	}
	writeJSON(w, http.StatusOK, parseResponse{Country: cc, Records: records, Summary: summary})
}

type convertRequest struct {
	Records []pricing.PlanRecord `json:"records"`
	Rates   map[string]float64   `json:"rates"`
	Base    string               `json:"base"`
	Target  string               `json:"target"`
	TopN    int                  `json:"top_n"`
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		req.Target = s.cfg.Exchange.Target
	}
	if req.Base == "" {
		req.Base = s.cfg.Exchange.Base
	}
	if req.TopN <= 0 {
		req.TopN = s.cfg.Exchange.TopN
	}
	if strings.TrimSpace(req.Target) == "" {
		writeError(w, http.StatusBadRequest, "target required")
		return
	}
	if len(req.Rates) == 0 {
		writeError(w, http.StatusBadRequest, "rates required")
		return
	}
	rates := make(exchange.Rates, len(req.Rates))
	for code, v := range req.Rates {
		rates[strings.ToUpper(code)] = v
	}

	report := exchange.BuildReport(snapshotFromRecords(req.Records), rates, exchange.ReportOptions{
		Base:   req.Base,
		Target: req.Target,
		TopN:   req.TopN,
		Now:    s.now(),
	})
	writeJSON(w, http.StatusOK, report)
}

// snapshotFromRecords groups posted records by country.
func snapshotFromRecords(records []pricing.PlanRecord) crawler.Snapshot {
	snap := make(crawler.Snapshot)
	for _, rec := range records {
		cc := strings.ToUpper(rec.Country)
		cs, ok := snap[cc]
		if !ok {
			cs = crawler.CountrySnapshot{CountryCode: cc, CountryName: regions.Name(cc), Success: true}
		}
		cs.Plans = append(cs.Plans, rec)
		snap[cc] = cs
	}
	return snap
}

func (s *Server) latestSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot storage not configured")
		return
	}
	snap, err := s.deps.Snapshots.Latest(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshot yet")
			return
		}
		s.logger.Error("load latest snapshot failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type scrapeRequest struct {
	Countries []string `json:"countries"`
}

func (s *Server) startScrape(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "scraping not configured")
		return
	}
	var req scrapeRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	var invalid []string
	for _, c := range req.Countries {
		if !validCountry(strings.ToLower(strings.TrimSpace(c))) {
			invalid = append(invalid, c)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		writeError(w, http.StatusBadRequest, "invalid country codes: "+strings.Join(invalid, ", "))
		return
	}
	countries := req.Countries
	if len(countries) == 0 {
		countries = s.cfg.Scrape.Countries
	}
	run, err := s.deps.Runner.Start(r.Context(), countries)
	if err != nil {
		s.logger.Error("start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run tracking not configured")
		return
	}
	runID := chi.URLParam(r, "run_id")
	if !uuid.Valid(runID) {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := s.deps.Runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, crawler.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) now() time.Time {
	if s.deps.Clock == nil {
		return time.Now().UTC()
	}
	return s.deps.Clock.Now()
}

func validCountry(cc string) bool {
	if len(cc) != 2 {
		return false
	}
	for _, c := range cc {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
