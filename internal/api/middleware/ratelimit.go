package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
)

// RateLimitByAccount limits authenticated callers per account, falling back
// to the client IP. Must run after Auth. A non-positive limit disables it.
func RateLimitByAccount(requests int, window time.Duration) echo.MiddlewareFunc {
	return rateLimit(requests, window, func(r *http.Request) (string, error) {
		if a := AccountFromContext(r.Context()); a != nil {
			return "account:" + a.ID, nil
		}
		return httprate.KeyByIP(r)
	})
}

// RateLimitByIP limits unauthenticated endpoints such as login and signup.
func RateLimitByIP(requests int, window time.Duration) echo.MiddlewareFunc {
	return rateLimit(requests, window, httprate.KeyByIP)
}

func rateLimit(requests int, window time.Duration, key httprate.KeyFunc) echo.MiddlewareFunc {
	if requests <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	limiter := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
	return echo.WrapMiddleware(limiter)
}
