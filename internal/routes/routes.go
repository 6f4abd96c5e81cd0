package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/ipthrottle/internal/auth"
	"github.com/BradenHooton/ipthrottle/internal/handlers"
	"github.com/BradenHooton/ipthrottle/internal/middleware"
	pkghttp "github.com/BradenHooton/ipthrottle/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Dependencies groups what the route table needs
type Dependencies struct {
	AuthHandler     *handlers.AuthHandler
	ThrottleHandler *handlers.ThrottleHandler
	Throttle        middleware.BlockChecker
	TokenManager    *auth.TokenManager
	IPConfig        *pkghttp.IPConfig
	RateLimit       middleware.RateLimitConfig
	Logger          *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	rateLimit := deps.RateLimit
	if rateLimit.RequestsPerMinute <= 0 {
		rateLimit = middleware.DefaultLoginRateLimit()
	}
	rateLimit.IPConfig = deps.IPConfig

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Resource not found")
	})

	// Public: raw request cap first, then the failed-login block check
	router.With(
		middleware.RateLimitByIP(rateLimit),
		middleware.LoginThrottle(deps.Throttle, deps.IPConfig, deps.Logger),
	).Post("/auth/login", deps.AuthHandler.Login)

	// Admin-only
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.TokenManager))
		r.Use(auth.RequireRole("admin"))

		r.Get("/admin/throttle/{address}", deps.ThrottleHandler.GetStatus)
		r.Delete("/admin/throttle/{address}", deps.ThrottleHandler.Reset)
	})
}
