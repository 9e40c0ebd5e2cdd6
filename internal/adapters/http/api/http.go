// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/okian/helio/internal/adapters/http/swagger"
	"github.com/okian/helio/internal/domain/model"
)

// Dependencies required by HTTP handlers. Every store driver satisfies it.
type Dependencies interface {
	Range(ctx context.Context, start, end time.Time) ([]model.Observation, error)
	Latest(ctx context.Context) (model.Observation, bool, error)

	RangeByDate(ctx context.Context, start, end time.Time) ([]model.Region, error)
	ByRegion(ctx context.Context, region int) ([]model.Region, error)
}

// Server wires HTTP routes for the query API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	observationsHandler *ObservationsHandler
	regionsHandler      *RegionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		observationsHandler: NewObservationsHandler(deps),
		regionsHandler:      NewRegionsHandler(deps),
	}
}

// Register attaches all API routes to r. Every route except /metrics is
// instrumented.
func (s *Server) Register(r chi.Router) {
	r.Get("/metrics", s.healthHandler.HandleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(Instrument)

		r.Get("/healthz", s.healthHandler.HandleHealth)
		r.Get("/stats", s.statsHandler.HandleStats)

		r.Get("/sdo/hmi", s.observationsHandler.HandleRange)
		r.Get("/sdo/hmi/latest", s.observationsHandler.HandleLatest)

		r.Get("/swpc/region", s.regionsHandler.HandleRange)
		r.Get("/swpc/region/{region}", s.regionsHandler.HandleRegion)
	})
}

// Handler returns the complete HTTP handler: API routes, documentation and
// gzip response compression.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s.Register(r)
	swagger.Register(ctx, r)

	return gzhttp.GzipHandler(r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
