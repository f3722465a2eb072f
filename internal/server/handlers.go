// Package server exposes the profile engine over http: one-shot profile
// requests, a websocket variant that streams progress, and cache control.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/strataview/strataview/internal/config"
	"github.com/strataview/strataview/internal/metrics"
	"github.com/strataview/strataview/internal/middleware"
	"github.com/strataview/strataview/internal/observability"
	"github.com/strataview/strataview/internal/orchestrator"
	"github.com/strataview/strataview/internal/profile"
	"github.com/strataview/strataview/internal/profilecache"
)

type Server struct {
	logger   *slog.Logger
	cache    *profilecache.Cache
	orch     *orchestrator.Orchestrator
	datasets *Registry
	sampling config.SamplingConfig
	metrics  *metrics.Provider
}

func New(logger *slog.Logger, cache *profilecache.Cache, orch *orchestrator.Orchestrator,
	datasets *Registry, sampling config.SamplingConfig, provider *metrics.Provider) *Server {
	return &Server{
		logger:   logger,
		cache:    cache,
		orch:     orch,
		datasets: datasets,
		sampling: sampling,
		metrics:  provider,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	}

	r.Post("/v1/profile", instrument("/v1/profile", s.handleProfile))
	r.Get("/v1/profile/stream", s.handleProfileStream)
	r.Delete("/v1/cache", instrument("/v1/cache", s.handleCacheClear))
	return r
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// applyDefaults fills request fields the caller left at zero: band means
// the first band, sampling knobs come from the daemon configuration.
func (s *Server) applyDefaults(cfg *profile.Configuration) {
	if cfg.Band == 0 {
		cfg.Band = 1
	}
	if cfg.Step == 0 {
		cfg.Step = s.sampling.DefaultStep
	}
	if cfg.MaxPreviewPoints == 0 {
		cfg.MaxPreviewPoints = s.sampling.MaxPreviewPoints
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var cfg profile.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	s.applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	src, err := s.datasets.Resolve(cfg)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.cache.GetOrCompute(r.Context(), cfg, func(ctx context.Context) (*profile.Result, error) {
		return s.orch.Compute(ctx, cfg, src, nil)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// client is gone, nothing useful left to write
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.datasets == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
