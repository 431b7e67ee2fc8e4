// Package server exposes the match engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/config"
	"github.com/connectingdocs/match-engine/internal/engagement"
	"github.com/connectingdocs/match-engine/internal/intake"
	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/monitoring"
	"github.com/connectingdocs/match-engine/internal/report"
	"github.com/connectingdocs/match-engine/internal/store"
	"github.com/connectingdocs/match-engine/internal/whatif"
)

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	Reports  *report.Service
	Store    store.Store
	Tiers    *engagement.Engine
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
}

// Server holds the handler dependencies.
type Server struct {
	deps Deps
}

// NewRouter builds the chi router for the API.
func NewRouter(cfg config.ServerConfig, deps Deps) http.Handler {
	s := &Server{deps: deps}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/reports", s.handleCreateReport)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Post("/reports/{id}/unlock", s.handleUnlock)
		r.Post("/resimulate", s.handleResimulate)
		r.Get("/protocols", s.handleListProtocols)
		r.Get("/doctors/{id}/stats", s.handleDoctorStats)
		r.Post("/solutions/{id}/events", s.handleSolutionEvent)
	})

	return r
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	raw, err := intake.ReadJSON(r.Body)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile, err := intake.Normalize(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.deps.Reports.Generate(r.Context(), profile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type unlockRequest struct {
	PatientID string `json:"patient_id"`
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	m, err := s.deps.Reports.Unlock(r.Context(), chi.URLParam(r, "id"), req.PatientID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type resimulateRequest struct {
	ReportID         string `json:"report_id"`
	BaseScore        int    `json:"base_score"`
	BaselinePain     int    `json:"baseline_pain"`
	BaselineDowntime int    `json:"baseline_downtime"`
	CurrentPain      int    `json:"current_pain"`
	CurrentDowntime  int    `json:"current_downtime"`
}

func (s *Server) handleResimulate(w http.ResponseWriter, r *http.Request) {
	var req resimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ReportID != "" {
		out, err := s.deps.Reports.Resimulate(r.Context(), req.ReportID, req.CurrentPain, req.CurrentDowntime)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	out := report.Project(whatifInput(req))
	s.deps.Metrics.Resimulation()
	writeJSON(w, http.StatusOK, out)
}

func whatifInput(req resimulateRequest) whatif.Input {
	return whatif.Input{
		BaseScore:        req.BaseScore,
		BaselinePain:     req.BaselinePain,
		BaselineDowntime: req.BaselineDowntime,
		CurrentPain:      req.CurrentPain,
		CurrentDowntime:  req.CurrentDowntime,
	}
}

func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	filter := model.ProtocolFilter{DoctorID: r.URL.Query().Get("doctor_id")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	protocols, err := s.deps.Store.ListProtocols(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocols)
}

func (s *Server) handleDoctorStats(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "id")
	solutions, err := s.deps.Store.ListSolutions(r.Context(), doctorID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.deps.Tiers.Snapshot(doctorID, solutions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type eventRequest struct {
	Event string `json:"event"`
	Count *int   `json:"count"`
}

type eventResponse struct {
	SolutionID string                `json:"solution_id"`
	Counters   engagement.Counters   `json:"counters"`
	Standing   engagement.TierResult `json:"standing"`
}

func (s *Server) handleSolutionEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	event, ok := model.ParseEngagementEvent(req.Event)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "event must be one of click, save, adoption, match")
		return
	}
	n := 1
	if req.Count != nil {
		n = *req.Count
	}
	if n < 1 {
		writeErrorMessage(w, http.StatusBadRequest, "count must be positive")
		return
	}

	solutionID := chi.URLParam(r, "id")
	if err := s.deps.Store.IncrementCounter(r.Context(), solutionID, event, n); err != nil {
		s.writeError(w, r, err)
		return
	}
	counters, err := s.deps.Store.GetCounters(r.Context(), solutionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	standing, err := s.deps.Tiers.Compute(counters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{SolutionID: solutionID, Counters: counters, Standing: standing})
}

// writeError maps domain errors onto status codes. Internal failures are
// logged with detail and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var intakeErr *intake.ValidationError
	var countersErr *engagement.ValidationError
	switch {
	case errors.As(err, &intakeErr), errors.As(err, &countersErr):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case store.IsNotFound(err):
		writeErrorMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, report.ErrNoRecommendation):
		writeErrorMessage(w, http.StatusConflict, "report has no recommendation")
	default:
		zap.L().Error("http handler failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("http: encode response", zap.Error(err))
	}
}
