package middleware

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventureflow/internal/audit"
	"ventureflow/internal/logging"
)

func TestRequestContextAssignsIDs(t *testing.T) {
	var seenRequestID, seenCorrelationID string
	var seenSource audit.Source

	r := gin.New()
	r.Use(RequestContext())
	r.GET("/", func(c *gin.Context) {
		ctx := c.Request.Context()
		seenRequestID = logging.RequestIDFromContext(ctx)
		seenCorrelationID = logging.CorrelationIDFromContext(ctx)
		seenSource = audit.SourceFromContext(ctx)
		c.Status(http.StatusNoContent)
	})

	w := doRequest(r, http.MethodGet, "/", nil, map[string]string{"User-Agent": "curl/8.5.0"})
	assert.Len(t, seenRequestID, 36)
	assert.Len(t, seenCorrelationID, 8)
	assert.Equal(t, seenRequestID, w.Header().Get(RequestIDHeader))
	assert.Equal(t, seenCorrelationID, w.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "curl/8.5.0", seenSource.UserAgent)
	assert.Equal(t, "192.0.2.1", seenSource.IPAddress)
}

func TestRequestContextKeepsIncomingRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestContext())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := doRequest(r, http.MethodGet, "/", nil, map[string]string{RequestIDHeader: "upstream-123"})
	assert.Equal(t, "upstream-123", w.Header().Get(RequestIDHeader))

	long := strings.Repeat("x", 65)
	w = doRequest(r, http.MethodGet, "/", nil, map[string]string{RequestIDHeader: long})
	assert.NotEqual(t, long, w.Header().Get(RequestIDHeader))
}

func TestAccessLogLevels(t *testing.T) {
	var buf bytes.Buffer
	previous := logging.Logger()
	logging.SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { logging.SetLogger(previous) })

	r := gin.New()
	r.Use(RequestContext(), AccessLog())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/denied", func(c *gin.Context) { c.Status(http.StatusForbidden) })

	doRequest(r, http.MethodGet, "/ok", nil, nil)
	doRequest(r, http.MethodGet, "/denied", nil, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[0], `"path":"/ok"`)
	assert.Contains(t, lines[0], `"request_id"`)
	assert.Contains(t, lines[1], `"level":"warn"`)
	assert.Contains(t, lines[1], `"status":403`)
}
