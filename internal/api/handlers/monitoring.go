package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ventureflow/internal/logging"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type MonitoringHandler struct {
	db Pinger
}

// NewMonitoringHandler builds the health endpoint. db may be nil when no
// database backs the process.
func NewMonitoringHandler(db Pinger) *MonitoringHandler {
	return &MonitoringHandler{db: db}
}

// Health reports liveness and, when a database is configured, whether it
// answers.
func (h *MonitoringHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Health check: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
