package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ventureflow/internal/api/middleware"
	"ventureflow/internal/logging"
	"ventureflow/internal/session"
)

type UserHandler struct {
	sessions *session.Manager
}

func NewUserHandler(sessions *session.Manager) *UserHandler {
	return &UserHandler{sessions: sessions}
}

// SessionInfo describes one live session without exposing its identifier.
type SessionInfo struct {
	ID            string    `json:"id"`
	Current       bool      `json:"current"`
	CreatedAt     time.Time `json:"createdAt"`
	LastTouchedAt time.Time `json:"lastTouchedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// GetSessions returns active sessions for current user
func (h *UserHandler) GetSessions(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - Authentication required"})
		return
	}

	sessions, err := h.sessions.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	current := middleware.CurrentSessionID(c)
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			ID:            logging.ShortID(s.ID),
			Current:       s.ID == current,
			CreatedAt:     s.CreatedAt,
			LastTouchedAt: s.LastTouchedAt,
			ExpiresAt:     s.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
