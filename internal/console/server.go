// Package console serves the local admin console: sign-in, registration,
// the signed-in user's profile and the admin user dashboard, each gated by
// the route guard. Data goes to and from the remote users API through the
// shared auth service and API client.
package console

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/usradm-dev/usradm/internal/cli/auth"
	"github.com/usradm-dev/usradm/internal/config"
	"github.com/usradm-dev/usradm/internal/guard"
	"github.com/usradm-dev/usradm/internal/models"
)

// Directory is the users resource the dashboard manages
type Directory interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	CreateUser(ctx context.Context, in models.UserInput) (*models.User, error)
	UpdateUser(ctx context.Context, id models.UserID, in models.UserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id models.UserID) error
}

// Server represents the console HTTP server
type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    zerolog.Logger
	auth      *auth.Service
	directory Directory
	scheduler *cron.Cron
	version   string
}

// New creates a new console server
func New(cfg *config.Config, authService *auth.Service, directory Directory, zlog zerolog.Logger, version string) (*Server, error) {
	server := &Server{
		config:    cfg,
		logger:    zlog.With().Str("component", "console").Logger(),
		auth:      authService,
		directory: directory,
		version:   version,
	}

	if cfg.Console.RefreshSchedule != "" {
		scheduler, err := newRefreshScheduler(cfg.Console.RefreshSchedule, server.refreshSession)
		if err != nil {
			return nil, err
		}
		server.scheduler = scheduler
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Console.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no guard)
	s.router.GET("/health", s.healthCheck)

	// Entry points (no guard)
	s.router.GET(guard.LoginPath, s.loginPage)
	s.router.POST(guard.LoginPath, s.login)
	s.router.GET("/register", s.registerPage)
	s.router.POST("/register", s.register)
	s.router.POST("/logout", s.logout)

	// Any signed-in user
	s.router.GET(guard.ProfilePath, s.requirePolicy(guard.Authenticated), s.profile)

	// Admin dashboard
	dashboard := s.router.Group(guard.DashboardPath)
	dashboard.Use(s.requirePolicy(guard.Admin))
	{
		dashboard.GET("", s.dashboard)
		dashboard.GET("/users", s.listUsers)
		dashboard.POST("/users", s.createUser)
		dashboard.GET("/users/:id", s.getUser)
		dashboard.PUT("/users/:id", s.updateUser)
		dashboard.DELETE("/users/:id", s.deleteUser)
	}

	// Root and unknown routes land according to the session
	s.router.GET("/", s.landing)
	s.router.NoRoute(s.landing)
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":        "online",
		"timestamp":     time.Now().UTC(),
		"service":       "usradm-console",
		"version":       s.version,
		"authenticated": s.auth.IsAuthenticated(),
	}
	if next := nextRefresh(s.config.Console.RefreshSchedule, time.Now()); next != nil {
		body["next_refresh_at"] = next.UTC()
	}
	c.JSON(http.StatusOK, body)
}

// landing sends the root and unknown routes to the page the session allows
func (s *Server) landing(c *gin.Context) {
	c.Redirect(http.StatusFound, guard.Landing(s.auth))
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	addr := s.config.Console.Addr

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * s.config.API.RequestTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting console")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
			errChan <- err
		}
	}()

	if s.scheduler != nil {
		s.scheduler.Start()
		s.logger.Info().Str("schedule", s.config.Console.RefreshSchedule).Msg("Token refresh scheduled")
	}

	// Wait for shutdown signal or a failed listener
	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.stopScheduler()
		return err
	}

	s.stopScheduler()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Console shutdown complete")
	return nil
}

// stopScheduler stops the refresh job and waits for a running one to end
func (s *Server) stopScheduler() {
	if s.scheduler == nil {
		return
	}
	<-s.scheduler.Stop().Done()
	s.logger.Info().Msg("Token refresh scheduler stopped")
}
