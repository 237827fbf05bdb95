package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/api/handlers"
	"github.com/adamscao/protocolreg/internal/api/middleware"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/registry"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
	logger *slog.Logger
	http   *http.Server
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, reg *registry.Registry, logger *slog.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Timeout(cfg.GetRequestTimeout()))

	authHandler := handlers.NewAuthHandler(reg.Identity, logger)
	userHandler := handlers.NewUserHandler(reg.Identity, logger)
	requesterHandler := handlers.NewRequesterHandler(reg.Requesters, logger)
	protocolHandler := handlers.NewProtocolHandler(reg.Protocols, logger)
	auditHandler := handlers.NewAuditHandler(reg.Audit, logger)
	reportHandler := handlers.NewReportHandler(reg.Protocols, reg.Audit, logger)
	dashboardHandler := handlers.NewDashboardHandler(reg.Stats, logger)

	v1 := router.Group("/v1")
	{
		// Public endpoints
		v1.POST("/auth/login", authHandler.Login)

		authed := v1.Group("")
		authed.Use(middleware.Auth(reg.Identity, logger))
		{
			authed.POST("/auth/logout", authHandler.Logout)
			authed.GET("/me", authHandler.Me)
			authed.GET("/dashboard", dashboardHandler.Get)

			users := authed.Group("/users")
			{
				users.GET("/:id", userHandler.Get)
				users.PUT("/:id/password", userHandler.SetPassword)
				users.POST("/:id/totp", userHandler.EnableTOTP)
				users.DELETE("/:id/totp", userHandler.DisableTOTP)
			}

			requesters := authed.Group("/requesters")
			{
				requesters.GET("", requesterHandler.List)
				requesters.POST("", requesterHandler.Create)
				requesters.GET("/:id", requesterHandler.Get)
				requesters.PUT("/:id", requesterHandler.Update)
				requesters.DELETE("/:id", requesterHandler.Delete)
			}

			protocols := authed.Group("/protocols")
			{
				protocols.GET("", protocolHandler.List)
				protocols.POST("", protocolHandler.Create)
				protocols.GET("/options", protocolHandler.Options)
				protocols.POST("/number", protocolHandler.GenerateNumber)
				protocols.GET("/:id", protocolHandler.Get)
				protocols.PUT("/:id", protocolHandler.Update)
				protocols.DELETE("/:id", protocolHandler.Delete)
			}

			reports := authed.Group("/reports")
			{
				reports.GET("/protocols.xlsx", reportHandler.Protocols("xlsx"))
				reports.GET("/protocols.csv", reportHandler.Protocols("csv"))
			}

			// Admin endpoints
			admin := authed.Group("")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/users", userHandler.List)
				admin.POST("/users", userHandler.Create)
				admin.PUT("/users/:id", userHandler.Update)
				admin.DELETE("/users/:id", userHandler.Delete)

				admin.GET("/audit", auditHandler.List)
				admin.GET("/audit/stats", auditHandler.Stats)
				admin.GET("/audit/export.csv", auditHandler.Export)
			}
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
		logger: logger,
		http: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.config.Server.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
