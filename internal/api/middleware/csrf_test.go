package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupCSRFRouter(s *spy) *gin.Engine {
	cfg := testConfig()
	r := gin.New()
	api := r.Group("/api")
	api.Use(CSRF(cfg.Security.CSRF, "/api"))
	api.POST("/things", s.handler)
	api.DELETE("/things", s.handler)
	api.GET("/things", s.handler)
	api.POST("/login", s.handler)
	api.POST("/register", s.handler)
	api.GET("/user", s.handler)
	return r
}

func TestCSRFRejectsMissingHeaderBeforeHandler(t *testing.T) {
	s := &spy{}
	r := setupCSRFRouter(s)

	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		w := doRequest(r, method, "/api/things", jsonBody(`{}`), nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "CSRF validation failed", decodeBody(t, w)["message"])
	}
	assert.Equal(t, 0, s.calls, "handler must not run when CSRF fails")
}

func TestCSRFRejectsWrongHeaderValue(t *testing.T) {
	s := &spy{}
	r := setupCSRFRouter(s)

	w := doRequest(r, http.MethodPost, "/api/things", jsonBody(`{}`), map[string]string{
		"X-Requested-With": "fetch",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, s.calls)
}

func TestCSRFAllowsHeader(t *testing.T) {
	s := &spy{}
	r := setupCSRFRouter(s)

	w := doRequest(r, http.MethodPost, "/api/things", jsonBody(`{}`), map[string]string{
		"X-Requested-With": "XMLHttpRequest",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.calls)
}

func TestCSRFSkipsReadsAndExemptPaths(t *testing.T) {
	s := &spy{}
	r := setupCSRFRouter(s)

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/things", nil, nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/login", jsonBody(`{}`), nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/register", jsonBody(`{}`), nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/user", nil, nil).Code)
	assert.Equal(t, 4, s.calls)
}
