package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ventureflow/internal/api/handlers"
	"ventureflow/internal/api/middleware"
	"ventureflow/internal/audit"
	"ventureflow/internal/config"
	"ventureflow/internal/services"
	"ventureflow/internal/session"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Config   *config.Config
	Auth     *services.AuthService
	Sessions *session.Manager
	Audit    *audit.Logger
	// DB is pinged by /health; nil skips the check.
	DB handlers.Pinger
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	cfg := deps.Config
	production := cfg.IsProduction()
	prefix := cfg.Server.APIPrefix

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Sessions)
	userHandler := handlers.NewUserHandler(deps.Sessions)
	monitoringHandler := handlers.NewMonitoringHandler(deps.DB)

	r.Use(middleware.RequestContext())
	r.Use(middleware.AccessLog())
	r.Use(middleware.Recovery(production))
	r.Use(middleware.ErrorHandler(production))
	r.Use(middleware.SecurityHeaders(production))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gate order is fixed: later gates rely on the earlier ones.
	api := r.Group(prefix)
	api.Use(
		middleware.RateLimit(cfg.Security.RateLimit, prefix, cfg.Server.TrustProxy),
		middleware.CSRF(cfg.Security.CSRF, prefix),
		middleware.Sanitize(cfg.Security.Sanitize),
		middleware.LoadSession(deps.Sessions, deps.Auth),
	)
	{
		api.GET("/health", monitoringHandler.Health)

		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.POST("/logout", authHandler.Logout)
		api.GET("/user", authHandler.GetUser)
	}

	protected := api.Group("")
	protected.Use(middleware.RequireAuth())
	{
		protected.GET("/sessions", middleware.AuditAccess(deps.Audit, "sessions"), userHandler.GetSessions)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, prefix+"/") {
			c.JSON(http.StatusNotFound, gin.H{"message": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})
}
