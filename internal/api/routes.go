package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"multibagger/config"
)

// batchGrace is added on top of the analysis timeout so the pipeline reports
// its own deadline error before chi cuts the request.
const batchGrace = 30 * time.Second

func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout(cfg)),
		CORSMiddleware(cfg.HTTP.CORSAllowedOrigins),
		MetricsMiddleware,
	)

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", h.mount)

	return r
}

func (h *Handler) mount(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/system-status", h.HandleSystemStatus)
	r.Get("/predefined-sets", h.HandlePredefinedSets)
	r.Post("/initialize", h.HandleInitialize)

	r.Post("/analyze", h.HandleAnalyze)
	r.Post("/analyze-single", h.HandleAnalyzeSingle)

	r.Get("/runs", h.HandleGetRuns)
	r.Get("/runs/{id}", h.HandleGetRun)
	r.Get("/verdicts/{symbol}", h.HandleGetVerdictHistory)
	r.Get("/agents/runs", h.HandleGetAgentRuns)
}

func requestTimeout(cfg *config.Config) time.Duration {
	sec := cfg.Discovery.AnalysisTimeoutSec
	if sec <= 0 {
		sec = cfg.Agent.TimeoutSeconds
	}
	return time.Duration(sec)*time.Second + batchGrace
}
