package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/auth"
	"github.com/visionedge/visionedge-cloud/internal/command"
	"github.com/visionedge/visionedge-cloud/internal/config"
	"github.com/visionedge/visionedge-cloud/internal/edgeauth"
	"github.com/visionedge/visionedge-cloud/internal/entitlement"
	"github.com/visionedge/visionedge-cloud/internal/license"
	"github.com/visionedge/visionedge-cloud/internal/server"
	"github.com/visionedge/visionedge-cloud/internal/storage"
	"github.com/visionedge/visionedge-cloud/internal/validation"
)

type contextKey string

const claimsKey contextKey = "claims"

// RESTServer represents the REST API server
type RESTServer struct {
	config      *config.Config
	store       storage.Store
	auth        *auth.JWTManager
	validator   *validation.Validator
	binding     *license.Manager
	entitlement *entitlement.Resolver
	dispatcher  *command.Dispatcher
	publisher   *server.NATSPublisher
	edgeAuth    *edgeauth.Middleware
	router      chi.Router
	server      *http.Server
}

// NewRESTServer creates a new REST API server. publisher may be nil when
// running without a broker.
func NewRESTServer(cfg *config.Config, store storage.Store, publisher *server.NATSPublisher) *RESTServer {
	s := &RESTServer{
		config:      cfg,
		store:       store,
		auth:        auth.NewJWTManager(&cfg.JWT),
		validator:   validation.NewValidator(),
		binding:     license.NewManager(store),
		entitlement: entitlement.NewResolver(store),
		dispatcher:  command.NewDispatcher(cfg.Edge.CommandTimeout),
		publisher:   publisher,
		edgeAuth:    edgeauth.NewMiddleware(store, cfg.Edge.ReplayWindow),
		router:      chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// Router exposes the configured router, mainly for tests
func (s *RESTServer) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the JWT authentication middleware for operator
// endpoints
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromContext returns the authenticated operator claims
func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// canAccessOrg reports whether the operator may touch resources of the
// given organization
func canAccessOrg(claims *auth.Claims, organizationID int64) bool {
	if claims.IsSuperAdmin() {
		return true
	}
	return claims.OrganizationID != nil && *claims.OrganizationID == organizationID
}

// orgFilter returns the organization filter listings must apply for
// this operator: nil for super admins (no filter), the operator's own
// organization otherwise.
func orgFilter(claims *auth.Claims) *int64 {
	if claims.IsSuperAdmin() {
		return nil
	}
	return claims.OrganizationID
}
