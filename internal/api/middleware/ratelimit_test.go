package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"ventureflow/internal/config"
)

func setupRateLimitRouter(cfg config.RateLimitConfig, s *spy) *gin.Engine {
	r := gin.New()
	api := r.Group("/api")
	api.Use(RateLimit(cfg, "/api", false))
	api.POST("/login", s.handler)
	api.POST("/register", s.handler)
	api.GET("/things", s.handler)
	return r
}

func requestFrom(r http.Handler, method, target, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthLimiterRejectsEleventhAttempt(t *testing.T) {
	s := &spy{}
	r := setupRateLimitRouter(testConfig().Security.RateLimit, s)

	for i := 0; i < 10; i++ {
		w := requestFrom(r, http.MethodPost, "/api/login", "192.0.2.10:5000")
		assert.Equal(t, http.StatusOK, w.Code, "attempt %d", i+1)
	}

	w := requestFrom(r, http.MethodPost, "/api/login", "192.0.2.10:5000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many login attempts, please try again later.", decodeBody(t, w)["error"])
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, 10, s.calls, "the 11th attempt must not reach the handler")

	// Another address has its own budget.
	w = requestFrom(r, http.MethodPost, "/api/login", "192.0.2.11:5000")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthLimiterSharesBudgetAcrossLoginAndRegister(t *testing.T) {
	s := &spy{}
	cfg := testConfig().Security.RateLimit
	cfg.Auth.Requests = 2
	r := setupRateLimitRouter(cfg, s)

	assert.Equal(t, http.StatusOK, requestFrom(r, http.MethodPost, "/api/login", "192.0.2.20:1").Code)
	assert.Equal(t, http.StatusOK, requestFrom(r, http.MethodPost, "/api/register", "192.0.2.20:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, requestFrom(r, http.MethodPost, "/api/register", "192.0.2.20:1").Code)

	// Non-auth endpoints are only subject to the general limit.
	assert.Equal(t, http.StatusOK, requestFrom(r, http.MethodGet, "/api/things", "192.0.2.20:1").Code)
}

func TestGeneralLimiter(t *testing.T) {
	s := &spy{}
	cfg := config.RateLimitConfig{
		General: config.LimitConfig{Requests: 5, Window: time.Minute},
		Auth:    config.LimitConfig{Requests: 10, Window: time.Minute},
	}
	r := setupRateLimitRouter(cfg, s)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, requestFrom(r, http.MethodGet, "/api/things", "192.0.2.30:1").Code)
	}

	w := requestFrom(r, http.MethodGet, "/api/things", "192.0.2.30:1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests, please try again later.", decodeBody(t, w)["error"])
	assert.Equal(t, 5, s.calls)
}

func TestRateLimitDisabled(t *testing.T) {
	s := &spy{}
	cfg := config.RateLimitConfig{
		Disabled: true,
		General:  config.LimitConfig{Requests: 1, Window: time.Minute},
		Auth:     config.LimitConfig{Requests: 1, Window: time.Minute},
	}
	r := setupRateLimitRouter(cfg, s)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, requestFrom(r, http.MethodPost, "/api/login", "192.0.2.40:1").Code)
	}
}

func TestRateLimitTrustProxyKeysOnForwardedAddress(t *testing.T) {
	s := &spy{}
	cfg := testConfig().Security.RateLimit
	cfg.Auth.Requests = 1

	r := gin.New()
	api := r.Group("/api")
	api.Use(RateLimit(cfg, "/api", true))
	api.POST("/login", s.handler)

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Real-IP", client)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2"), "distinct clients behind one proxy")
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
}
