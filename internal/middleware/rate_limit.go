package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/ipthrottle/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds request rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultLoginRateLimit returns the default request limit for the login endpoint (20 requests per minute)
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
	}
}

// RateLimitByIP caps raw request volume per client address, independent of
// whether the requests carry valid credentials. The key comes from
// ExtractClientIP so forwarding headers are honored only from trusted proxies.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
