package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"ventureflow/internal/config"
	"ventureflow/internal/logging"
	"ventureflow/internal/metrics"
)

const (
	msgTooManyRequests = "Too many requests, please try again later."
	msgTooManyLogins   = "Too many login attempts, please try again later."
)

// RateLimit applies the general API ceiling to every request and the
// stricter auth ceiling to the login and registration endpoints under
// prefix. Both are sliding-window counters keyed by client address.
func RateLimit(cfg config.RateLimitConfig, prefix string, trustProxy bool) gin.HandlerFunc {
	if cfg.Disabled {
		return func(c *gin.Context) { c.Next() }
	}

	keyFunc := httprate.KeyByIP
	if trustProxy {
		keyFunc = httprate.KeyByRealIP
	}

	general := fromHTTP(httprate.Limit(
		cfg.General.Requests,
		cfg.General.Window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(limitHandler("general", msgTooManyRequests)),
	))
	auth := fromHTTP(httprate.Limit(
		cfg.Auth.Requests,
		cfg.Auth.Window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(limitHandler("auth", msgTooManyLogins)),
	))

	authPaths := map[string]bool{
		prefix + "/login":    true,
		prefix + "/register": true,
	}

	return func(c *gin.Context) {
		general(c)
		if c.IsAborted() {
			return
		}
		if authPaths[strings.TrimSuffix(c.Request.URL.Path, "/")] {
			auth(c)
		}
	}
}

func limitHandler(limiter, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.RateLimited.WithLabelValues(limiter).Inc()
		logging.Ctx(r.Context()).Warn().
			Str("limiter", limiter).
			Str("path", r.URL.Path).
			Msg("Rate limit exceeded")

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
	}
}

// fromHTTP adapts a net/http middleware to gin. The wrapped middleware is
// built once; the returned handler aborts the chain when the middleware
// answers the request itself.
func fromHTTP(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
