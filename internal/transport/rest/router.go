package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/medichat/internal/audit"
	"github.com/frahmantamala/medichat/internal/auth"
	"github.com/frahmantamala/medichat/internal/chat"
	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/internal/rag"
	"github.com/frahmantamala/medichat/internal/transport/middleware"
	"github.com/frahmantamala/medichat/internal/transport/swagger"
	"github.com/frahmantamala/medichat/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes is everything the router mounts. Nil handlers leave their routes out.
type Routes struct {
	Health      *HealthHandler
	Auth        *auth.Handler
	User        *user.Handler
	Chat        *chat.Handler
	Documents   *rag.Handler
	Audit       *audit.Handler
	Policy      policy.Client
	Auditor     middleware.AccessAuditor
	RateLimiter *middleware.RateLimiter
	OpenAPI     *middleware.OpenAPIValidator

	OpenAPIPath    string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

const defaultMaxBodyBytes = 4 << 20

func RegisterAllRoutes(router *chi.Mux, routes Routes, logger *slog.Logger) {
	// Apply global middleware
	maxBody := routes.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.Metrics)

	if routes.Health != nil {
		router.Get("/health", routes.Health.Liveness)
	}

	// Serve OpenAPI spec at root (outside API prefix)
	specPath := routes.OpenAPIPath
	if specPath == "" {
		specPath = "./api/openapi.yml"
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specPath)
	})
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	router.Handle("/metrics", promhttp.Handler())

	// Mount API under /api/v1 to match OpenAPI paths
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxBody))
		r.Use(middleware.LoggingMiddleware(logger))

		validate := func(vr chi.Router) {
			if routes.OpenAPI != nil {
				vr.Use(routes.OpenAPI.Middleware)
			}
		}

		if routes.Health != nil {
			r.Get("/health", routes.Health.Readiness)
		}

		if routes.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Use(chiMiddleware.AllowContentType("application/json"))
			validate(sr)
			sr.Post("/login", routes.Auth.Login)
			sr.Post("/refresh", routes.Auth.RefreshToken)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(routes.Auth.AuthMiddleware)
			validate(pr)

			if routes.User != nil {
				pr.Get("/users/me", routes.User.GetCurrentUser)
			}

			if routes.Chat != nil {
				pr.Route("/chat", func(cr chi.Router) {
					cr.Get("/history", routes.Chat.History)
					cr.Group(func(sr chi.Router) {
						sr.Use(chiMiddleware.AllowContentType("application/json"))
						if routes.RateLimiter != nil {
							sr.Use(routes.RateLimiter.Middleware)
						}
						sr.Post("/", routes.Chat.Chat)
					})
				})
			}

			if routes.Documents != nil {
				pr.Get("/documents/search", routes.Documents.Search)
			}

			if routes.Audit != nil && routes.Policy != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(middleware.PolicyGuard(routes.Policy, policy.ResourceAuditLog, routes.Auditor, logger))
					ar.Get("/audit", routes.Audit.ListMine)
				})
			}
		})
	})
}
