package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"intercept-sandbox/internal/observability"
)

func Router(h *InterceptHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/brands/{brandID}/projects/{projectID}", h.Project)
		r.Post("/brands/{brandID}/projects/{projectID}/evaluate", h.EvaluateProject)
		r.Post("/intercepts/{interceptID}/evaluate", h.Evaluate)
		r.Post("/intercepts/{interceptID}/impressions", h.Impression)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
