package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"ventureflow/internal/config"
)

// Sanitize bounds request size. Bodies beyond MaxBodyBytes are refused with
// 413; query values and top-level string fields of JSON object bodies are
// silently cut to their ceilings.
func Sanitize(cfg config.SanitizeConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		truncateQuery(c.Request, cfg.MaxQueryLength)

		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Request entity too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Could not read request body"})
			return
		}

		if isJSON(c.Request) {
			body = truncateJSONFields(body, cfg.MaxBodyField)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.ContentLength = int64(len(body))

		c.Next()
	}
}

func truncateQuery(r *http.Request, limit int) {
	if r.URL.RawQuery == "" {
		return
	}
	values := r.URL.Query()
	changed := false
	for key, vs := range values {
		for i, v := range vs {
			if cut, ok := truncateRunes(v, limit); ok {
				vs[i] = cut
				changed = true
			}
		}
		values[key] = vs
	}
	if changed {
		r.URL.RawQuery = values.Encode()
	}
}

// truncateJSONFields returns body unchanged unless it is a JSON object with
// an over-long string field.
func truncateJSONFields(body []byte, limit int) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		// Malformed JSON is left for the handler to reject.
		return body
	}

	changed := false
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if cut, ok := truncateRunes(s, limit); ok {
			fields[k] = cut
			changed = true
		}
	}
	if !changed {
		return body
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}
