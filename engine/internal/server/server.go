package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clearline-systems/clearline-engine/common/middleware"
	"github.com/clearline-systems/clearline-engine/engine/internal/handlers"
)

type Config struct {
	Port         int
	TokenSecret  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// New wires the HTTP surface. Health and metrics endpoints are unauthenticated;
// the API routes sit behind bearer auth when a token secret is configured.
func New(cfg Config, h *handlers.Handler) *http.Server {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenSecret))

		r.Post("/batches", h.SubmitBatch)
		r.Get("/batches", h.ListBatchResults)
		r.Get("/batches/{batchID}", h.GetBatchResult)
		r.Get("/schemas", h.ListSchemas)
		r.Get("/schemas/{kind}", h.GetSchema)
		r.Get("/stats", h.Stats)
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
