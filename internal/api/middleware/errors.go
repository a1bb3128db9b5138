package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"ventureflow/internal/logging"
)

const msgInternalError = "Internal Server Error"

// AbortWithError hands err to ErrorHandler with the current stack attached
// and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	abortWithError(c, err)
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err).SetMeta(debug.Stack())
	c.Abort()
}

// ErrorHandler renders errors attached with c.Error that the handler chain
// left unanswered. The correlation id is returned as errorId and logged
// alongside the full error so operators can match the two. Details and the
// stack are only exposed in development.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		stack, _ := last.Meta.([]byte)
		errorID := logging.CorrelationIDFromContext(c.Request.Context())

		logging.Ctx(c.Request.Context()).Error().
			Err(last.Err).
			Str("path", c.Request.URL.Path).
			Str("error_id", errorID).
			Bytes("stack", stack).
			Msg("Request failed")

		c.JSON(http.StatusInternalServerError, errorBody(production, errorID, last.Err.Error(), stack))
	}
}

// Recovery turns a panic into the same envelope ErrorHandler produces.
func Recovery(production bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		stack := debug.Stack()
		errorID := logging.CorrelationIDFromContext(c.Request.Context())

		logging.Ctx(c.Request.Context()).Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Str("error_id", errorID).
			Bytes("stack", stack).
			Msg("Recovered from panic")

		c.AbortWithStatusJSON(http.StatusInternalServerError,
			errorBody(production, errorID, fmt.Sprint(recovered), stack))
	})
}

func errorBody(production bool, errorID, detail string, stack []byte) gin.H {
	body := gin.H{
		"error":   true,
		"message": msgInternalError,
		"errorId": errorID,
	}
	if !production {
		body["details"] = detail
		if len(stack) > 0 {
			body["stack"] = string(stack)
		}
	}
	return body
}
