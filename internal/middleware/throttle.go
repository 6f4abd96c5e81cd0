package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/BradenHooton/ipthrottle/internal/services"
	pkghttp "github.com/BradenHooton/ipthrottle/pkg/http"
)

type clientIPKey struct{}

// BlockChecker reports whether a client address is currently blocked
type BlockChecker interface {
	IsBlocked(ctx context.Context, address string) (*services.ThrottleStatus, error)
}

// LoginThrottle rejects requests from blocked client addresses with 429 before
// credentials are checked. The resolved address is stored in the request context.
// Store failures are logged and the request is let through.
func LoginThrottle(checker BlockChecker, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			address := pkghttp.ExtractClientIP(r, ipConfig)
			ctx := context.WithValue(r.Context(), clientIPKey{}, address)

			status, err := checker.IsBlocked(ctx, address)
			if err != nil {
				logger.Error("login throttle check failed",
					slog.String("ip_address", address),
					slog.Any("error", err))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if status.Blocked {
				logger.Warn("blocked address attempted login", slog.String("ip_address", address))
				pkghttp.WriteThrottled(w, status.Message, int(math.Ceil(status.RetryAfter.Seconds())))
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromContext returns the address resolved by LoginThrottle
func ClientIPFromContext(ctx context.Context) (string, bool) {
	address, ok := ctx.Value(clientIPKey{}).(string)
	return address, ok && address != ""
}
