package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"ventureflow/internal/audit"
	"ventureflow/internal/logging"
)

const (
	RequestIDHeader     = "X-Request-ID"
	CorrelationIDHeader = "X-Correlation-ID"
)

// RequestContext assigns request and correlation ids and records the client
// address for audit events. A well-formed incoming X-Request-ID is kept.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = logging.GenerateRequestID()
		}
		correlationID := logging.GenerateCorrelationID()

		ctx := logging.ContextWithRequestID(c.Request.Context(), requestID)
		ctx = logging.ContextWithCorrelationID(ctx, correlationID)
		ctx = audit.ContextWithSource(ctx, audit.Source{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Header(RequestIDHeader, requestID)
		c.Header(CorrelationIDHeader, correlationID)
		c.Next()
	}
}

// AccessLog writes one line per request once the handler chain is done.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		event := logging.Ctx(c.Request.Context()).Info()
		switch {
		case status >= 500:
			event = logging.Ctx(c.Request.Context()).Error()
		case status >= 400:
			event = logging.Ctx(c.Request.Context()).Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("ip", c.ClientIP()).
			Int("size", c.Writer.Size()).
			Msg("HTTP request")
	}
}
