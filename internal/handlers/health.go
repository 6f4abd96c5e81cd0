package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/ipthrottle/pkg/http"
)

// HealthChecker is satisfied by the attempt record store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Driver string `json:"driver"`
}

// Health returns a handler for GET /health that pings the attempt record store
func Health(checker HealthChecker, driver string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			logger.Warn("health check failed", slog.String("driver", driver), slog.Any("error", err))
			pkghttp.WriteServiceUnavailable(w, "Attempt record store ("+driver+") is unreachable")
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy", Store: "up", Driver: driver})
	}
}
