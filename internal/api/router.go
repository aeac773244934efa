// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/metrics"
)

// NewRouter builds the chi router with the full middleware stack and all
// backup subsystem routes.
func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(instrument)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if h.cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(h.cfg.Server.RateLimit, time.Minute))
	}

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/health/ready", h.handleReady)
		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.handleListBackups)
			r.Post("/", h.handleCreateBackup)
			r.Delete("/", h.handleDeleteBackup)
			r.Get("/stats", h.handleBackupStats)
			r.Get("/verify", h.handleVerifyBackup)
			r.Get("/download", h.handleDownloadBackup)
		})
		r.Route("/restore", func(r chi.Router) {
			r.Post("/", h.handleStartRestore)
			r.Get("/status", h.handleRestoreStatus)
			r.Get("/jobs", h.handleListRestoreJobs)
		})
		r.Route("/settings", func(r chi.Router) {
			r.Get("/backup", h.handleGetSettings)
			r.Put("/backup", h.handleUpdateSettings)
		})
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

// instrument records per-route Prometheus metrics. The chi route pattern
// keeps label cardinality bounded.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.
			WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
			Inc()
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method).
			Observe(time.Since(start).Seconds())
	})
}
