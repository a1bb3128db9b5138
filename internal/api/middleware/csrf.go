package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ventureflow/internal/config"
	"ventureflow/internal/logging"
	"ventureflow/internal/metrics"
)

// CSRF requires the configured custom header on every state-changing
// request. Plain cross-site form posts cannot set it. Paths listed in
// cfg.ExemptPaths are relative to prefix.
func CSRF(cfg config.CSRFConfig, prefix string) gin.HandlerFunc {
	exempt := make(map[string]bool, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[prefix+p] = true
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if exempt[strings.TrimSuffix(c.Request.URL.Path, "/")] {
			c.Next()
			return
		}

		if c.GetHeader(cfg.HeaderName) != cfg.HeaderValue {
			metrics.CSRFRejections.Inc()
			logging.Ctx(c.Request.Context()).Warn().
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("CSRF header missing")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "CSRF validation failed"})
			return
		}

		c.Next()
	}
}
