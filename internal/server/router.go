// Package server assembles the chi router: middleware stack, public session
// endpoints, and the token-gated device surface.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gameboard/internal/handler"
	"gameboard/internal/ratelimit"
	"gameboard/internal/server/middleware"
)

// Deps are the router's collaborators. Limiter may be nil (rate limiting
// disabled).
type Deps struct {
	Device    *handler.DeviceHandler
	Nonce     *handler.NonceHandler
	Health    *handler.HealthHandler
	Validator middleware.TokenValidator
	Limiter   *ratelimit.Limiter
}

// NewRouter creates and configures the chi router with all middleware and routes.
func NewRouter(deps Deps) chi.Router {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", deps.Health.Health)

	router.Route("/v1", func(r chi.Router) {
		// Login and refresh carry no access token; they are the endpoints
		// worth hammering, so the rate limiter sits here.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter))
			deps.Device.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireDeviceToken(deps.Validator))
			deps.Device.RegisterProtectedRoutes(r)
			deps.Nonce.RegisterRoutes(r)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}
