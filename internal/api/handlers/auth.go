package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ventureflow/internal/api/middleware"
	"ventureflow/internal/logging"
	"ventureflow/internal/models"
	"ventureflow/internal/services"
	"ventureflow/internal/session"
)

type AuthHandler struct {
	authService *services.AuthService
	sessions    *session.Manager
}

func NewAuthHandler(authService *services.AuthService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account and signs the new user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, sess, err := h.authService.Register(c.Request.Context(), services.Registration{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondValidation(c, verr.Field, verr.Message)
			return
		}
		middleware.AbortWithError(c, err)
		return
	}

	h.dropCurrentSession(c)
	if !h.setSessionCookie(c, sess) {
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, sess := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	switch result.Outcome {
	case services.Denied:
		logging.Ctx(c.Request.Context()).Warn().Msg("Login denied")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
		return
	case services.Error:
		middleware.AbortWithError(c, result.Err)
		return
	}

	h.dropCurrentSession(c)
	if !h.setSessionCookie(c, sess) {
		return
	}
	c.JSON(http.StatusOK, result.User)
}

// Logout ends the current session. It succeeds whether or not one exists.
func (h *AuthHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		if middleware.HadSessionCookie(c) {
			replaceCookie(c, h.sessions.ClearCookie())
		}
		c.JSON(http.StatusOK, gin.H{"message": "Not logged in"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), middleware.CurrentSessionID(c), user.Username); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	replaceCookie(c, h.sessions.ClearCookie())
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GetUser returns the signed-in user, or 401 with no body.
func (h *AuthHandler) GetUser(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, user)
}

// dropCurrentSession discards the session the request already carried once
// a new one has been issued, so a planted session id never becomes an
// authenticated one. Failed attempts leave it alone.
func (h *AuthHandler) dropCurrentSession(c *gin.Context) {
	id := middleware.CurrentSessionID(c)
	if id == "" {
		return
	}
	if err := h.sessions.Destroy(c.Request.Context(), id); err != nil {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("Failed to drop previous session")
	}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, sess *models.Session) bool {
	cookie, err := h.sessions.Cookie(sess.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return false
	}
	replaceCookie(c, cookie)
	return true
}

// replaceCookie drops the renewal cookie LoadSession may already have
// queued so the response carries a single session cookie.
func replaceCookie(c *gin.Context, cookie *http.Cookie) {
	c.Writer.Header().Del("Set-Cookie")
	http.SetCookie(c.Writer, cookie)
}

func respondValidation(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": message,
		"details": gin.H{"field": field},
	})
}

// respondBindError maps binding failures to the same field-level shape the
// services use. Missing fields win over length problems.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		respondValidation(c, "body", "Invalid request body")
		return
	}

	picked := verrs[0]
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			picked = fe
			break
		}
	}

	field := strings.ToLower(picked.Field())
	switch picked.Tag() {
	case "required":
		respondValidation(c, field, "Username and password are required")
	case "min":
		respondValidation(c, field, picked.Field()+" must be at least "+picked.Param()+" characters")
	default:
		respondValidation(c, field, "Invalid "+field)
	}
}
