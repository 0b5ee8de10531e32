package routes

import (
	"communityos/guildlink/internal/api"
	"communityos/guildlink/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterAPIRoutes registers all API v1 routes and handlers
// This keeps API route registration separate from the main router setup
func RegisterAPIRoutes(r chi.Router, deps *api.Dependencies, handlers *api.Handlers) {

	r.Route("/api/v1", func(v1 chi.Router) {
		// OAuth callbacks are browser redirects from Discord; the state
		// token is the credential, so no API key applies. Rate limited
		// because they face the open internet.
		v1.Group(func(public chi.Router) {
			public.Use(middleware.RateLimitMiddleware)
			public.Get("/link/callback", handlers.LinkCallback())
			public.Get("/install/callback", handlers.InstallCallback())
		})

		// Everything else is backend-to-backend, keyed.
		v1.Group(func(keyed chi.Router) {
			keyed.Use(middleware.AuthMiddleware(deps.Repo.Keys))

			keyed.Post("/link/start", handlers.StartLink())
			keyed.Post("/link/verify", handlers.VerifyLinkToken())
			keyed.Post("/install/start", handlers.StartInstall())
			keyed.Get("/guilds", handlers.ListConnections())

			keyed.Put("/rules/{kind}/{sourceId}", handlers.ReplaceRules())
			keyed.Get("/rules/{kind}/{sourceId}", handlers.ListRules())

			keyed.Get("/integration/config", handlers.GetConfig())
			keyed.Put("/integration/config", handlers.UpdateConfig())
			keyed.Post("/integration/config/validate", handlers.ValidateConfig())

			keyed.Post("/sync", handlers.EnqueueSync())
			keyed.Get("/jobs", handlers.ListJobs())
		})
	})
}
