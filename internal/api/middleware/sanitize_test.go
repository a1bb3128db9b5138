package middleware

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSanitizeRouter(captured *[]byte, query *string) *gin.Engine {
	r := gin.New()
	r.Use(Sanitize(testConfig().Security.Sanitize))
	r.POST("/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		*captured = body
		*query = c.Query("q")
		c.Status(http.StatusNoContent)
	})
	r.GET("/echo", func(c *gin.Context) {
		*query = c.Query("q")
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestSanitizeTruncatesQueryValues(t *testing.T) {
	var body []byte
	var q string
	r := setupSanitizeRouter(&body, &q)

	w := doRequest(r, http.MethodGet, "/echo?q="+strings.Repeat("a", 600)+"&short=x", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, q, 500)
}

func TestSanitizeTruncatesByCharacters(t *testing.T) {
	var body []byte
	var q string
	r := setupSanitizeRouter(&body, &q)

	long := strings.Repeat("é", 2500)
	w := doRequest(r, http.MethodPost, "/echo", jsonBody(`{"name":"`+long+`"}`), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	out := decodeJSON(t, body)
	name := out["name"].(string)
	assert.Equal(t, 2000, utf8.RuneCountInString(name))
	assert.True(t, utf8.ValidString(name))
}

func TestSanitizeBodyFields(t *testing.T) {
	var body []byte
	var q string
	r := setupSanitizeRouter(&body, &q)

	payload := `{"username":"alice","bio":"` + strings.Repeat("b", 3000) + `","count":12345678901234567890,"nested":{"deep":"` + strings.Repeat("c", 3000) + `"}}`
	w := doRequest(r, http.MethodPost, "/echo", jsonBody(payload), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	out := decodeJSON(t, body)
	assert.Equal(t, "alice", out["username"])
	assert.Len(t, out["bio"], 2000)
	assert.Contains(t, string(body), "12345678901234567890", "large numbers keep their precision")
	nested := out["nested"].(map[string]interface{})
	assert.Len(t, nested["deep"], 3000, "only top-level fields are capped")
}

func TestSanitizeLeavesShortBodiesAlone(t *testing.T) {
	var body []byte
	var q string
	r := setupSanitizeRouter(&body, &q)

	payload := `{ "username" : "alice" }`
	doRequest(r, http.MethodPost, "/echo", jsonBody(payload), nil)
	assert.Equal(t, payload, string(body))

	malformed := `{"username":`
	doRequest(r, http.MethodPost, "/echo", jsonBody(malformed), nil)
	assert.Equal(t, malformed, string(body))
}

func TestSanitizeRejectsOversizedBody(t *testing.T) {
	var body []byte
	var q string
	r := setupSanitizeRouter(&body, &q)

	big := `{"x":"` + strings.Repeat("a", 1<<20) + `"}`
	w := doRequest(r, http.MethodPost, "/echo", jsonBody(big), nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Request entity too large", decodeBody(t, w)["message"])
	assert.Nil(t, body, "handler must not run")
}

func TestTruncateRunes(t *testing.T) {
	s, cut := truncateRunes("hello", 10)
	assert.Equal(t, "hello", s)
	assert.False(t, cut)

	s, cut = truncateRunes("héllo wörld", 5)
	assert.Equal(t, "héllo", s)
	assert.True(t, cut)

	s, cut = truncateRunes("ééé", 3)
	assert.Equal(t, "ééé", s)
	assert.False(t, cut)
}
