package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/sightmatch/internal/web/handlers"
	"github.com/kozaktomas/sightmatch/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	casesHandler := handlers.NewCasesHandler(s.deps.Cases, s.deps.Rebuilder, s.logger)
	sightingsHandler := handlers.NewSightingsHandler(s.deps.Resolver, s.deps.Embedder, s.deps.Sightings, s.logger)
	limiter := middleware.NewRateLimiter(s.config.Web.RateLimit, s.config.Web.RateBurst)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Cases
		r.Get("/cases", casesHandler.List)

		// Sightings
		r.Get("/sightings", sightingsHandler.List)

		// Writes are rate limited.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)

			r.Post("/cases", casesHandler.Create)
			r.Post("/cases/{caseID}/close", casesHandler.Close)
			r.Post("/sightings", sightingsHandler.Report)
		})
	})
}
