package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/middleware"
)

// NewRouter constructs the HTTP handler of the WishKeeper API.
//
// Routes:
//
//	POST   /api/register           → authHandler.Register
//	GET    /api/products           → catalogHandler.List
//	GET    /api/products/{id}      → catalogHandler.Get
//	POST   /api/login              → authHandler.Login        (client certificate)
//	GET    /api/wishlist           → wishlistHandler.List     (client certificate)
//	POST   /api/wishlist           → wishlistHandler.Add      (client certificate)
//	DELETE /api/wishlist/{remoteID} → wishlistHandler.Remove  (client certificate)
//	GET    /healthz, /metrics
//
// Every request passes Recovery, WithRequestLogging and Metrics. Endpoints
// with a request body only accept application/json.
func NewRouter(
	authHandler *AuthHandler,
	wishlistHandler *WishlistHandler,
	catalogHandler *CatalogHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.Metrics)

	jsonOnly := chiMiddleware.AllowContentType("application/json")

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.With(jsonOnly).Post("/register", authHandler.Register)
		r.Get("/products", catalogHandler.List)
		r.Get("/products/{id}", catalogHandler.Get)

		// Protected group: requires valid client certificate
		r.Group(func(r chi.Router) {
			r.Use(middleware.CertAuth)
			r.Post("/login", authHandler.Login)
			r.Get("/wishlist", wishlistHandler.List)
			r.With(jsonOnly).Post("/wishlist", wishlistHandler.Add)
			r.Delete("/wishlist/{remoteID}", wishlistHandler.Remove)
		})
	})

	return r
}
