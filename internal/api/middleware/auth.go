package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ventureflow/internal/audit"
	"ventureflow/internal/logging"
	"ventureflow/internal/models"
	"ventureflow/internal/session"
)

const (
	sessionIDKey     = "session_id"
	sessionCookieKey = "session_cookie"
)

type userContextKey struct{}

// UserLookup resolves the user a session belongs to.
type UserLookup interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// LoadSession resolves the session cookie, if any, renews it and attaches
// the owning user to the request. Requests without a live session pass
// through untouched; RequireAuth decides whether that is acceptable.
func LoadSession(sessions *session.Manager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(sessions.CookieName())
		if err != nil || value == "" {
			c.Next()
			return
		}
		c.Set(sessionCookieKey, true)

		ctx := c.Request.Context()
		sessionID, err := sessions.SessionIDFromCookie(value)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("Ignoring invalid session cookie")
			c.Next()
			return
		}

		userID, ok, err := sessions.Resolve(ctx, sessionID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !ok {
			c.Next()
			return
		}

		user, err := users.GetUser(ctx, userID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if user == nil {
			c.Next()
			return
		}

		if err := sessions.Touch(ctx, sessionID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("session", logging.ShortID(sessionID)).Msg("Failed to renew session")
		} else if cookie, err := sessions.Cookie(sessionID); err == nil {
			http.SetCookie(c.Writer, cookie)
		}

		c.Set(sessionIDKey, sessionID)
		c.Request = c.Request.WithContext(contextWithUser(ctx, user))
		c.Next()
	}
}

// RequireAuth rejects requests that carry no live session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - Authentication required"})
			return
		}
		c.Next()
	}
}

// AuditAccess records one sensitive-access event per request for resource.
// It must run after RequireAuth.
func AuditAccess(logger *audit.Logger, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := audit.Anonymous
		if user := CurrentUser(c); user != nil {
			actor = user.Username
		}
		fields := audit.Fields{
			"resource": resource,
			"method":   c.Request.Method,
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"], _ = truncateRunes(q, 100)
		}
		logger.Record(c.Request.Context(), audit.CategorySensitiveAccess, actor, fields)
		c.Next()
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *models.User {
	return UserFromContext(c.Request.Context())
}

// CurrentSessionID returns the live session id or "".
func CurrentSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// HadSessionCookie reports whether the request presented a session cookie,
// live or not.
func HadSessionCookie(c *gin.Context) bool {
	return c.GetBool(sessionCookieKey)
}

func contextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the authenticated user carried by ctx, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey{}).(*models.User)
	return user
}
