package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Edge-facing routes, HMAC-authenticated. Every endpoint here goes
	// through the signature middleware; none may bypass it.
	r.Route("/edges", func(r chi.Router) {
		r.Use(s.edgeAuth.Handler)
		r.Post("/heartbeat", s.HandleEdgeHeartbeat)
		r.Get("/cameras", s.HandleEdgeListCameras)
		r.Post("/events", s.HandleEdgeCreateEvent)
	})

	// Operator routes, JWT-authenticated
	r.Group(func(r chi.Router) {
		// Users
		r.Route("/users", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
				r.Delete("/", s.HandleDeleteUser)
			})
		})

		// Organizations
		r.Route("/organizations", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListOrganizations)
			r.Post("/", s.HandleCreateOrganization)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetOrganization)
				r.Put("/", s.HandleUpdateOrganization)
				r.Delete("/", s.HandleDeleteOrganization)
				r.Get("/entitlements", s.HandleGetEntitlements)
			})
		})

		// Subscription plans
		r.Route("/plans", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListPlans)
			r.Post("/", s.HandleCreatePlan)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetPlan)
				r.Put("/", s.HandleUpdatePlan)
				r.Delete("/", s.HandleDeletePlan)
			})
		})

		// Licenses
		r.Route("/licenses", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListLicenses)
			r.Post("/", s.HandleCreateLicense)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetLicense)
				r.Put("/", s.HandleUpdateLicense)
				r.Delete("/", s.HandleDeleteLicense)
				r.Post("/activate", s.HandleActivateLicense)
				r.Post("/suspend", s.HandleSuspendLicense)
				r.Post("/renew", s.HandleRenewLicense)
				r.Post("/bind", s.HandleBindLicense)
				r.Post("/rebind", s.HandleRebindLicense)
				r.Post("/unbind", s.HandleUnbindLicense)
			})
		})

		// Edge servers
		r.Route("/edge-servers", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEdgeServers)
			r.Post("/", s.HandleCreateEdgeServer)
			r.Get("/stats", s.HandleEdgeServerStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetEdgeServer)
				r.Put("/", s.HandleUpdateEdgeServer)
				r.Delete("/", s.HandleDeleteEdgeServer)
				r.Get("/logs", s.HandleListEdgeServerLogs)
				r.Post("/unbind", s.HandleUnbindEdgeServer)
				r.Post("/restart", s.HandleRestartEdgeServer)
				r.Post("/sync-config", s.HandleSyncEdgeServerConfig)
			})
		})

		// Cameras
		r.Route("/cameras", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListCameras)
			r.Post("/", s.HandleCreateCamera)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetCamera)
				r.Put("/", s.HandleUpdateCamera)
				r.Delete("/", s.HandleDeleteCamera)
			})
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEvents)
		})
	})
}
