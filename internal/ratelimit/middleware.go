package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/redmonkez12/go-contacts-api/internal/httputil"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
)

// IdentityFunc extracts the identity a request is counted against.
// An empty identity skips limiting.
type IdentityFunc func(r *http.Request) string

// ByIP counts requests per client address.
// chi's RealIP middleware must run first when behind a proxy.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over policy with 429 before they reach the handler
func (l *Limiter) Middleware(policy Policy, identity IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Take(r.Context(), id, policy)
			if err != nil {
				logging.GetLoggerFromContext(r.Context()).Error("rate limiter unavailable, allowing request",
					"policy", policy.Name,
					"error", err,
				)
			}

			if !res.Allowed {
				logging.GetLoggerFromContext(r.Context()).Warn("rate limit exceeded",
					"policy", policy.Name,
					"count", res.Count,
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
				httputil.RespondErrorWithCode(w, "Too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(res Result) int {
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
