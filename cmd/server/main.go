package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ventureflow/internal/api/routes"
	"ventureflow/internal/audit"
	"ventureflow/internal/config"
	"ventureflow/internal/logging"
	"ventureflow/internal/models"
	"ventureflow/internal/password"
	"ventureflow/internal/services"
	"ventureflow/internal/session"
	"ventureflow/internal/storage"
	"ventureflow/internal/supervisor"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	// Load configuration
	cfg, err := config.Load(configPath())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if cfg.UsesDevSecret() {
		logging.Warn().Msg("Using the built-in development session secret; set SESSION_SECRET before deploying")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	if err := models.InitDB(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}

	sessionStore, err := openSessionStore(cfg, models.DB)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := sessionStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close session store")
		}
	}()

	sessions := session.NewManager(sessionStore, cfg.Session, cfg.IsProduction())
	auditLogger := audit.NewLogger(openAuditStore(cfg, models.DB))
	authService := services.NewAuthService(
		storage.NewGormUserStore(models.DB),
		password.NewHasher(cfg.Security.Scrypt),
		sessions,
		auditLogger,
	)

	if cfg.SeedsDefaultUser() {
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
		if err := authService.SeedDefaultUser(seedCtx, cfg.DefaultUser); err != nil {
			logging.Warn().Err(err).Msg("Failed to create default user")
		}
		cancelSeed()
	} else if cfg.DefaultUser.Username != "" {
		logging.Info().Msg("Skipping default user in production")
	}

	// Create router
	r := gin.New()
	if !cfg.Server.TrustProxy {
		if err := r.SetTrustedProxies(nil); err != nil {
			logging.Fatal().Err(err).Msg("Failed to configure trusted proxies")
		}
	}

	deps := routes.Deps{
		Config:   cfg,
		Auth:     authService,
		Sessions: sessions,
		Audit:    auditLogger,
	}
	if sqlDB, err := models.DB.DB(); err == nil {
		deps.DB = sqlDB
	}
	routes.SetupRoutes(r, deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(session.NewSweeper(sessions, cfg.Session.SweepInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("addr", addr).
		Str("environment", cfg.Server.Environment).
		Str("session_store", cfg.Session.Store).
		Str("audit_store", cfg.Audit.Store).
		Msg("Starting VentureFlow server")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor stopped with error")
	}
	logging.Info().Msg("Server stopped")
}

// configPath honours VENTUREFLOW_CONFIG and falls back to env-only
// configuration when the default file is absent.
func configPath() string {
	if p := os.Getenv("VENTUREFLOW_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func openSessionStore(cfg *config.Config, db *gorm.DB) (storage.SessionStore, error) {
	switch cfg.Session.Store {
	case "database":
		return storage.NewGormSessionStore(db, cfg.Session.MaxSessions), nil
	case "badger":
		return storage.OpenBadgerSessionStore(cfg.Session.BadgerPath, cfg.Session.MaxSessions)
	default:
		return storage.NewMemorySessionStore(cfg.Session.MaxSessions), nil
	}
}

func openAuditStore(cfg *config.Config, db *gorm.DB) audit.Store {
	if cfg.Audit.Store == "memory" {
		return audit.NewMemoryStore(cfg.Audit.MemoryMax)
	}
	return audit.NewGormStore(db)
}
