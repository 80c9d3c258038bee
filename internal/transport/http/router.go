package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-filegate/internal/application/catalog"
	"github.com/go-filegate/internal/application/delivery"
	"github.com/go-filegate/internal/application/verification"
	"github.com/go-filegate/internal/config"
	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/clock"
	"github.com/go-filegate/internal/pkg/token"
	"github.com/go-filegate/internal/transport/http/handler"
	appmiddleware "github.com/go-filegate/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — the verify callback and delivery
	// requests are the abuse-prone surfaces.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	clk := clock.System()
	verifySvc := verification.NewService(
		deps.AccessRepo, deps.VerificationRepo, token.Generator{}, deps.Shortener, clk,
		verification.Options{
			Window:          cfg.VerifyWindow,
			IssuanceTTL:     cfg.IssuanceTTL,
			CallTimeout:     cfg.ExternalCallTimeout,
			CallbackBaseURL: cfg.CallbackBaseURL,
		})
	catalogSvc := catalog.NewService(deps.ItemRepo, deps.S3Store, clk, catalog.Options{
		SearchThreshold: cfg.SearchThreshold,
		MaxResults:      cfg.MaxSearchResults,
		CallTimeout:     cfg.ExternalCallTimeout,
	})
	deliverySvc := delivery.NewService(deps.ItemRepo, verifySvc, deps.S3Store, deps.Scheduler, clk,
		delivery.Options{
			DeleteDelay:    cfg.DeleteDelay,
			ArtifactURLTTL: cfg.ArtifactURLTTL,
		})

	healthH := handler.NewHealthHandler()
	verifyH := handler.NewVerifyHandler(verifySvc)
	accessH := handler.NewAccessHandler(verifySvc)
	deliveryH := handler.NewDeliveryHandler(deliverySvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		// Verification landing must work without credentials: the user
		// arrives from the shortened link in a plain browser.
		r.With(sensitiveRL.Limit).Get("/verify/{token}", verifyH.Complete)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/access", accessH.Status)
			r.Get("/verifications/history", accessH.History)
			r.With(sensitiveRL.Limit).Post("/deliveries", deliveryH.Request)
			r.Get("/items", catalogH.Search)
			r.Get("/items/{id}", catalogH.Get)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/items", catalogH.Create)
				r.Delete("/items/{id}", catalogH.Delete)
				r.Get("/stats", accessH.Stats)
			})
		})
	})

	return r
}
