package routes

import (
	"context"
	"net/http"
	"time"

	"communityos/guildlink/internal/api"
	"communityos/guildlink/internal/db"
	"communityos/guildlink/internal/jobs"
	"communityos/guildlink/internal/logging"
	"communityos/guildlink/internal/metrics"
	"communityos/guildlink/internal/middleware"
	"communityos/guildlink/internal/workers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func RegisterRoutes(upSince time.Time) http.Handler {

	// initialize Chi router
	r := chi.NewRouter()

	// Initialize metrics registry
	metricsReg := metrics.NewMetricsRegistry()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.MetricsMiddleware(metricsReg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Org-Id", "X-User-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	logging.Info("Router initialized with metrics and logging middleware")

	// health check
	r.Get("/healthCheck", api.HealthCheckHandler(db.DB, upSince))

	// Initialize dependencies using DI pattern
	deps, err := api.InitDependencies(metricsReg)
	if err != nil {
		panic("Failed to initialize dependencies: " + err.Error())
	}

	handlers := api.NewHandlers(deps)

	// Background processing shares the request-path dependencies.
	jobs.InitializeJobs(context.Background(), deps.Repo.OAuthState, metricsReg)
	workers.InitWorkers(context.Background(), deps.Repo.SyncJobs, deps.Services.RoleSync, metricsReg)

	RegisterAPIRoutes(r, deps, handlers)

	return r
}
